package pathfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecursiveFilter(t *testing.T) {
	t.Parallel()

	f := New([]string{"/a/b"}, true, false)
	assert.True(t, f.Active())
	assert.True(t, f.Allow("/a/b/c.txt"))
	assert.False(t, f.Allow("/a/x.txt"))
}

func TestMatchBoundaries(t *testing.T) {
	t.Parallel()

	f := New([]string{"/a/b", "/srv/data/", "/x"}, true, false)

	tests := map[string]bool{
		"/a/b":             true,
		"/a/b/":            true,
		"/a/b/c/d/e":       true,
		"/a/bc":            false,
		"/a/bc/d":          false,
		"/a":               false,
		"/srv/data":        true,
		"/srv/data/file":   true,
		"/srv/database":    false,
		"/x/y":             true,
		"/xy":              false,
		"/unrelated/a/b/c": false,
	}
	for path, want := range tests {
		assert.Equal(t, want, f.Match(path), path)
		assert.Equal(t, want, f.Allow(path), path)
	}
}

func TestAnyWatchedPathMatches(t *testing.T) {
	t.Parallel()

	// "/a/bx" has the longer key "/a/b" as a string prefix but only "/a" as a path prefix
	f := New([]string{"/a", "/a/b"}, true, false)
	assert.True(t, f.Allow("/a/bx"))
	assert.True(t, f.Allow("/a/b/c"))
	assert.False(t, f.Allow("/ab"))
}

func TestRootWatch(t *testing.T) {
	t.Parallel()

	f := New([]string{"/"}, true, false)
	assert.True(t, f.Allow("/"))
	assert.True(t, f.Allow("/etc/passwd"))
}

func TestInactive(t *testing.T) {
	t.Parallel()

	tests := map[string]*Filter{
		"non-recursive": New([]string{"/a/b"}, false, false),
		"namespaced":    New([]string{"/a/b"}, true, true),
		"no paths":      New(nil, true, false),
	}
	for name, f := range tests {
		assert.False(t, f.Active(), name)
		assert.True(t, f.Allow("/a/x.txt"), name)
	}
}

func TestNoPathAlwaysAllowed(t *testing.T) {
	t.Parallel()

	f := New([]string{"/a/b"}, true, false)
	assert.True(t, f.Allow(""))
}
