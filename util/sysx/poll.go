package sysx

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Poll waits with no timeout until at least one fd is ready, retrying on EINTR.
// fds with a negative Fd are ignored by the kernel.
func Poll(fds []unix.PollFd) error {
	for {
		for i := range fds {
			fds[i].Revents = 0
		}
		n, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n >= 1 {
			return nil
		}
	}
}

func Readable(revents int16) bool {
	return revents&unix.POLLIN != 0
}

// Hangup reports whether the fd was closed or errored. POLLIN may be set too.
func Hangup(revents int16) bool {
	return revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0
}
