package fanotify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unsafe"

	"github.com/orbstack/fanmon/flagset"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const maxLineLen = 4096

var ErrMalformedCommand = errors.New("expected \"<ALLOW|DENY> <fd>\"")

type Command struct {
	Response flagset.Flag[Response]
	Fd       int32
}

// ParseCommand parses one control line: "<ALLOW|DENY> <fd>".
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Command{}, fmt.Errorf("%q: %w", line, ErrMalformedCommand)
	}

	resp, err := Responses.Parse(fields[0])
	if err != nil {
		return Command{}, err
	}

	fd, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil || fd < 0 {
		return Command{}, fmt.Errorf("bad fd %q: %w", fields[1], ErrMalformedCommand)
	}

	return Command{Response: resp, Fd: int32(fd)}, nil
}

// EncodeResponse returns the kernel's struct fanotify_response, verbatim.
func EncodeResponse(fd int32, resp Response) []byte {
	r := unix.FanotifyResponse{
		Fd:       fd,
		Response: uint32(resp),
	}
	out := make([]byte, unsafe.Sizeof(r))
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&r)), unsafe.Sizeof(r)))
	return out
}

// Responder answers permission events and releases their fds.
type Responder struct {
	w   io.Writer
	fds Descriptors
}

func NewResponder(w io.Writer, fds Descriptors) *Responder {
	return &Responder{w: w, fds: fds}
}

// Respond writes the response record, then closes fd whether or not the write worked.
// ENOENT means the kernel already dropped the event (requester died), which isn't fatal.
func (r *Responder) Respond(fd int32, resp flagset.Flag[Response]) error {
	_, werr := r.w.Write(EncodeResponse(fd, resp.Value))

	if err := r.fds.Close(fd); err != nil {
		logrus.WithError(err).WithField("fd", fd).Warn("failed to close event fd")
	}

	if werr != nil {
		if errors.Is(werr, unix.ENOENT) {
			logrus.WithFields(logrus.Fields{
				"fd":       fd,
				"response": resp,
			}).Info("permission event already gone")
			return nil
		}
		return fmt.Errorf("fanotify write: %w", werr)
	}
	return nil
}

// fdWriter writes to a raw fd without going through os.File, which would
// take ownership of the notification handle.
type fdWriter int

func (w fdWriter) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(int(w), p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// lineBuffer accumulates control input across reads and splits it into lines.
type lineBuffer struct {
	buf []byte
}

// Feed appends data and returns the complete lines, without terminators.
func (l *lineBuffer) Feed(data []byte) []string {
	l.buf = append(l.buf, data...)

	var lines []string
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(l.buf[:i], []byte{'\r'})))
		l.buf = l.buf[i+1:]
	}

	if len(l.buf) > maxLineLen {
		// nothing valid is this long; don't grow forever
		lines = append(lines, string(l.buf))
		l.buf = nil
	}
	if len(l.buf) == 0 {
		l.buf = nil
	}
	return lines
}

// Flush returns any unterminated remainder. Used at EOF.
func (l *lineBuffer) Flush() (string, bool) {
	if len(l.buf) == 0 {
		return "", false
	}
	line := string(l.buf)
	l.buf = nil
	return line, true
}
