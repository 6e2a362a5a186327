package fanotify

import (
	"strconv"

	"github.com/orbstack/fanmon/util"
	"golang.org/x/sys/unix"
)

// Entry is one decoded notification.
// Fd < 0, Pid <= 0 and Path == "" each mean the field is absent.
type Entry struct {
	Mask Event
	Fd   int32
	Pid  int32
	Path string
}

func (e Entry) HasFd() bool {
	return e.Fd >= 0
}

func (e Entry) HasPid() bool {
	return e.Pid > 0
}

func (e Entry) HasPath() bool {
	return e.Path != ""
}

func (e Entry) IsPermission() bool {
	return IsPermission(e.Mask)
}

// AppendText appends "<flags>\t<fd>\t<pid>\t<path>\n", with "-" for absent fields.
func (e Entry) AppendText(b []byte) []byte {
	flags := Events.Format(e.Mask)
	if flags == "" {
		flags = "-"
	}
	b = append(b, flags...)
	b = append(b, '\t')
	if e.HasFd() {
		b = strconv.AppendInt(b, int64(e.Fd), 10)
	} else {
		b = append(b, '-')
	}
	b = append(b, '\t')
	if e.HasPid() {
		b = strconv.AppendInt(b, int64(e.Pid), 10)
	} else {
		b = append(b, '-')
	}
	b = append(b, '\t')
	if e.HasPath() {
		b = append(b, e.Path...)
	} else {
		b = append(b, '-')
	}
	return append(b, '\n')
}

func (e Entry) String() string {
	b := e.AppendText(nil)
	return string(b[:len(b)-1])
}

// Descriptors resolves and releases descriptors handed to us by the kernel.
type Descriptors interface {
	Resolve(fd int32) (string, error)
	Close(fd int32) error
}

type ProcDescriptors struct{}

func (ProcDescriptors) Resolve(fd int32) (string, error) {
	return util.ReadFdLink(int(fd))
}

func (ProcDescriptors) Close(fd int32) error {
	return unix.Close(int(fd))
}
