// Package pathfilter limits output to the subtrees that were asked for.
//
// Mount and filesystem marks report everything on the mount, so in recursive
// mode an event is shown only if its path is at or below one of the watched paths.
package pathfilter

import (
	"strings"

	"github.com/armon/go-radix"
)

type Filter struct {
	// keys are watched paths with a trailing slash, so prefix matches stop at
	// component boundaries: "/a/b/" is not a prefix of "/a/bc/"
	tree   *radix.Tree
	active bool
}

// New builds a filter over canonical absolute paths. With a namespace target the
// kernel's scoping is authoritative and nothing is filtered.
func New(paths []string, recursive bool, namespaced bool) *Filter {
	f := &Filter{
		tree:   radix.New(),
		active: recursive && !namespaced && len(paths) > 0,
	}
	for _, p := range paths {
		f.tree.Insert(key(p), p)
	}
	return f
}

func key(path string) string {
	return strings.TrimRight(path, "/") + "/"
}

func (f *Filter) Active() bool {
	return f.active
}

// Match reports whether path is a watched path or below one.
func (f *Filter) Match(path string) bool {
	_, _, ok := f.tree.LongestPrefix(key(path))
	return ok
}

// Allow reports whether an event for path should be shown. Events with no path
// (queue overflow) always are.
func (f *Filter) Allow(path string) bool {
	if !f.active || path == "" {
		return true
	}
	return f.Match(path)
}

