package fanotify

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	initFlags      = unix.FAN_CLASS_CONTENT | unix.FAN_CLOEXEC | unix.FAN_NONBLOCK
	eventFileFlags = unix.O_RDONLY | unix.O_CLOEXEC | unix.O_LARGEFILE
)

// Init opens a notification handle that can receive permission events.
func Init() (int, error) {
	fd, err := unix.FanotifyInit(initFlags, eventFileFlags)
	if err != nil {
		return -1, fmt.Errorf("fanotify_init: %w (needs CAP_SYS_ADMIN)", err)
	}
	return fd, nil
}

func MarkFlags(filesystem, mount bool) uint {
	flags := uint(unix.FAN_MARK_ADD)
	if filesystem {
		flags |= unix.FAN_MARK_FILESYSTEM
	} else if mount {
		flags |= unix.FAN_MARK_MOUNT
	}
	return flags
}

// Mark adds mask for every path, relative to dirFd (AT_FDCWD or a namespace root).
func Mark(fd int, flags uint, mask Event, dirFd int, paths []string) error {
	for _, path := range paths {
		err := unix.FanotifyMark(fd, flags, uint64(mask), dirFd, path)
		if err != nil {
			return fmt.Errorf("fanotify_mark %s: %w", path, err)
		}
	}
	return nil
}
