package conf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEvents = "FAN_ACCESS,FAN_MODIFY,FAN_CLOSE_WRITE,FAN_CLOSE_NOWRITE,FAN_OPEN,FAN_ONDIR,FAN_EVENT_ON_CHILD"

	DefaultPendingLimit     = 1024
	DefaultOverflowResponse = "DENY"
	DefaultFilteredResponse = "ALLOW"
	DefaultEOFResponse      = "DENY"
)

var ErrNoPaths = errors.New("no paths to watch")

type Options struct {
	Events string `yaml:"events"`
	// paths are relative to the filesystem namespace of this process
	Namespace  int      `yaml:"namespace"`
	Recursive  bool     `yaml:"recursive"`
	Mount      bool     `yaml:"mount"`
	Filesystem bool     `yaml:"filesystem"`
	Paths      []string `yaml:"paths"`

	// control channel; stdin if empty
	Control          string `yaml:"control"`
	PendingLimit     int    `yaml:"pending_limit"`
	OverflowResponse string `yaml:"overflow_response"`
	FilteredResponse string `yaml:"filtered_response"`
	EOFResponse      string `yaml:"eof_response"`

	Debug bool `yaml:"debug"`
}

// Default returns options with the numeric defaults filled in. They can't be
// applied later: an explicit 0 has to stay distinguishable from "unset".
func Default() *Options {
	return &Options{
		PendingLimit: DefaultPendingLimit,
	}
}

// Load reads options from a YAML file on top of Default. Unknown keys are an error.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	opts := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return opts, nil
}

func (o *Options) Namespaced() bool {
	return o.Namespace > 0
}

// ApplyDefaults fills unset fields and applies the scope implications:
// filesystem implies mount, and mount and recursive imply each other.
func (o *Options) ApplyDefaults() {
	if o.Events == "" {
		o.Events = DefaultEvents
	}
	if o.OverflowResponse == "" {
		o.OverflowResponse = DefaultOverflowResponse
	}
	if o.FilteredResponse == "" {
		o.FilteredResponse = DefaultFilteredResponse
	}
	if o.EOFResponse == "" {
		o.EOFResponse = DefaultEOFResponse
	}

	if o.Filesystem {
		o.Mount = true
	}
	if o.Mount {
		o.Recursive = true
	} else if o.Recursive {
		o.Mount = true
	}
}

// Canonicalize makes paths absolute with symlinks resolved. In a namespace they're
// made relative to its root instead, since the kernel resolves them against that.
func (o *Options) Canonicalize() error {
	for i, p := range o.Paths {
		if o.Namespaced() {
			rel := strings.TrimLeft(p, "/")
			if rel == "" {
				rel = "."
			}
			o.Paths[i] = rel
			continue
		}

		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		abs, err = filepath.EvalSymlinks(abs)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		o.Paths[i] = abs
	}
	return nil
}

func (o *Options) Validate() error {
	if len(o.Paths) == 0 {
		return ErrNoPaths
	}
	if o.PendingLimit <= 0 {
		return fmt.Errorf("pending limit must be positive: %d", o.PendingLimit)
	}
	if o.Namespace < 0 {
		return fmt.Errorf("invalid namespace pid: %d", o.Namespace)
	}
	return nil
}

// Debug reports whether FANMON_DEBUG is set in the environment.
func Debug() bool {
	v := os.Getenv("FANMON_DEBUG")
	return v != "" && v != "0" && v != "false"
}
