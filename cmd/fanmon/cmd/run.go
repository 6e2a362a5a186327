package cmd

import (
	"context"
	"fmt"

	"github.com/orbstack/fanmon/conf"
	"github.com/orbstack/fanmon/fanotify"
	"github.com/orbstack/fanmon/flagset"
	"github.com/orbstack/fanmon/pathfilter"
	"github.com/orbstack/fanmon/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type responses struct {
	overflow flagset.Flag[fanotify.Response]
	filtered flagset.Flag[fanotify.Response]
	eof      flagset.Flag[fanotify.Response]
}

func parseResponses(opts *conf.Options) (responses, error) {
	var r responses
	var err error
	r.overflow, err = fanotify.Responses.Parse(opts.OverflowResponse)
	if err != nil {
		return r, fmt.Errorf("overflow response: %w", err)
	}
	r.filtered, err = fanotify.Responses.Parse(opts.FilteredResponse)
	if err != nil {
		return r, fmt.Errorf("filtered response: %w", err)
	}
	r.eof, err = fanotify.Responses.Parse(opts.EOFResponse)
	if err != nil {
		return r, fmt.Errorf("eof response: %w", err)
	}
	return r, nil
}

func openControl(path string) (int, error) {
	if path == "" {
		return unix.Stdin, nil
	}

	// a FIFO blocks here until a writer shows up
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}

func run(ctx context.Context, opts *conf.Options) error {
	mask, err := fanotify.Events.ParseList(opts.Events)
	if err != nil {
		return fmt.Errorf("argument validation: %w", err)
	}
	if mask == 0 {
		return fmt.Errorf("argument validation: no events in %q", opts.Events)
	}
	resps, err := parseResponses(opts)
	if err != nil {
		return fmt.Errorf("argument validation: %w", err)
	}

	dirFd := unix.AT_FDCWD
	if opts.Namespaced() {
		dirFd, err = util.OpenNamespaceRoot(opts.Namespace)
		if err != nil {
			return fmt.Errorf("watch registration: %w", err)
		}
		defer unix.Close(dirFd)
	}

	fanFd, err := fanotify.Init()
	if err != nil {
		return fmt.Errorf("watch registration: %w", err)
	}
	defer unix.Close(fanFd)

	err = fanotify.Mark(fanFd, fanotify.MarkFlags(opts.Filesystem, opts.Mount), mask, dirFd, opts.Paths)
	if err != nil {
		return fmt.Errorf("watch registration: %w", err)
	}

	controlFd, err := openControl(opts.Control)
	if err != nil {
		return fmt.Errorf("command handling: control: %w", err)
	}
	if controlFd != unix.Stdin {
		defer unix.Close(controlFd)
	}

	logrus.WithFields(logrus.Fields{
		"events":    fanotify.Events.Format(mask),
		"paths":     opts.Paths,
		"recursive": opts.Recursive,
		"namespace": opts.Namespace,
	}).Debug("watching")

	loop := fanotify.NewLoop(fanotify.LoopOptions{
		NotifyFd:         fanFd,
		ControlFd:        controlFd,
		Filter:           pathfilter.New(opts.Paths, opts.Recursive, opts.Namespaced()),
		Cmdlines:         util.NewCmdlineCache(),
		PendingLimit:     opts.PendingLimit,
		OverflowResponse: resps.overflow,
		FilteredResponse: resps.filtered,
		EOFResponse:      resps.eof,
	})
	return loop.Run(ctx)
}
