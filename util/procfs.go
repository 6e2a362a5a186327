package util

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sys/unix"
)

const (
	cmdlineCacheSize = 256
	// pids get reused, so don't trust a cached cmdline for long
	cmdlineCacheTTL = 5 * time.Second
)

// ReadFdLink resolves one of our own descriptors to the path it refers to.
func ReadFdLink(fd int) (string, error) {
	return os.Readlink("/proc/self/fd/" + strconv.Itoa(fd))
}

func OpenNamespaceRoot(pid int) (int, error) {
	path := fmt.Sprintf("/proc/%d/root", pid)
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return fd, nil
}

type CmdlineCache struct {
	lru *expirable.LRU[int32, string]
}

func NewCmdlineCache() *CmdlineCache {
	return &CmdlineCache{
		lru: expirable.NewLRU[int32, string](cmdlineCacheSize, nil, cmdlineCacheTTL),
	}
}

// Get returns the space-joined cmdline of pid, or "" if it's gone.
// no way to do this non-racily: the process can exit at any time
func (c *CmdlineCache) Get(pid int32) string {
	if pid <= 0 {
		return ""
	}
	if cmdline, ok := c.lru.Get(pid); ok {
		return cmdline
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return ""
	}
	cmdline := string(bytes.TrimRight(bytes.ReplaceAll(data, []byte{0}, []byte{' '}), " "))
	c.lru.Add(pid, cmdline)
	return cmdline
}
