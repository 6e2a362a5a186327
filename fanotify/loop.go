package fanotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/orbstack/fanmon/flagset"
	"github.com/orbstack/fanmon/util"
	"github.com/orbstack/fanmon/util/sysx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const controlReadSize = 4096

// Filter decides whether an entry with the given path is shown.
type Filter interface {
	Allow(path string) bool
}

type LoopOptions struct {
	NotifyFd int
	// -1 for no control channel
	ControlFd int

	// where responses go. defaults to NotifyFd
	Responses   io.Writer
	Output      io.Writer
	Filter      Filter
	Descriptors Descriptors
	Cmdlines    *util.CmdlineCache

	PendingLimit int
	// answer for permission events that arrive while the pending set is full
	OverflowResponse flagset.Flag[Response]
	// answer for permission events outside the watched paths
	FilteredResponse flagset.Flag[Response]
	// answer for permission events once nobody can respond (control EOF, shutdown)
	EOFResponse flagset.Flag[Response]
}

type Loop struct {
	opts LoopOptions

	gate      *Gate
	responder *Responder
	pending   *Pending

	buf    []byte
	ctlBuf []byte
	line   []byte
	lines  lineBuffer

	controlClosed bool
}

func NewLoop(opts LoopOptions) *Loop {
	if opts.Descriptors == nil {
		opts.Descriptors = ProcDescriptors{}
	}
	if opts.Responses == nil {
		opts.Responses = fdWriter(opts.NotifyFd)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OverflowResponse.Name == "" {
		opts.OverflowResponse = Deny
	}
	if opts.FilteredResponse.Name == "" {
		opts.FilteredResponse = Allow
	}
	if opts.EOFResponse.Name == "" {
		opts.EOFResponse = Deny
	}

	return &Loop{
		opts:          opts,
		gate:          NewGate(opts.Descriptors),
		responder:     NewResponder(opts.Responses, opts.Descriptors),
		pending:       NewPending(opts.PendingLimit),
		buf:           make([]byte, BufferSize),
		ctlBuf:        make([]byte, controlReadSize),
		controlClosed: opts.ControlFd < 0,
	}
}

func (l *Loop) Pending() *Pending {
	return l.pending
}

// Run multiplexes the notification handle and the control channel until ctx is
// done or a handler fails. Within one wakeup, events are handled before commands
// so a response can follow its event in the same batch.
func (l *Loop) Run(ctx context.Context) error {
	// pipe for stop signal
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	defer r.Close()
	defer w.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = w.Close()
	})
	defer stop()

	controlFd := int32(l.opts.ControlFd)
	if l.controlClosed {
		controlFd = -1
	}
	fds := [...]unix.PollFd{
		{Fd: int32(r.Fd()), Events: unix.POLLIN},
		{Fd: int32(l.opts.NotifyFd), Events: unix.POLLIN},
		{Fd: controlFd, Events: unix.POLLIN},
	}

	for {
		if err := sysx.Poll(fds[:]); err != nil {
			return fmt.Errorf("decode: poll: %w", err)
		}

		if rev := fds[1].Revents; rev != 0 {
			if sysx.Hangup(rev) && !sysx.Readable(rev) {
				return fmt.Errorf("decode: notification handle failed (revents 0x%x)", rev)
			}
			if err := l.handleNotify(); err != nil {
				return err
			}
		}

		if fds[2].Revents != 0 {
			if err := l.handleControl(); err != nil {
				return err
			}
			if l.controlClosed {
				fds[2].Fd = -1
			}
		}

		if fds[0].Revents != 0 {
			// stopped
			l.answerAll(l.opts.EOFResponse)
			return nil
		}
	}
}

func (l *Loop) handleNotify() error {
	recs, err := ReadRecords(l.opts.NotifyFd, l.buf)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return l.dispatch(recs)
}

func (l *Loop) dispatch(recs []RawRecord) error {
	entries, err := l.gate.AdmitAll(recs)
	if err != nil {
		return fmt.Errorf("resolution: %w", err)
	}

	for _, e := range entries {
		if err := l.emit(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) emit(e Entry) error {
	if l.opts.Filter != nil && !l.opts.Filter.Allow(e.Path) {
		logrus.WithField("path", e.Path).Debug("dropping unwanted notification")
		if e.IsPermission() && e.HasFd() {
			return l.respond(e.Fd, l.opts.FilteredResponse)
		}
		return nil
	}

	l.line = e.AppendText(l.line[:0])
	if _, err := l.opts.Output.Write(l.line); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if !e.IsPermission() || !e.HasFd() {
		return nil
	}

	if l.controlClosed {
		return l.respond(e.Fd, l.opts.EOFResponse)
	}

	if err := l.pending.Add(e); err != nil {
		logrus.WithFields(logrus.Fields{
			"fd":       e.Fd,
			"pid":      e.Pid,
			"path":     e.Path,
			"response": l.opts.OverflowResponse,
		}).WithError(err).Warn("answering permission event automatically")
		return l.respond(e.Fd, l.opts.OverflowResponse)
	}

	if l.opts.Cmdlines != nil && logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.WithFields(logrus.Fields{
			"fd":      e.Fd,
			"pid":     e.Pid,
			"path":    e.Path,
			"cmdline": l.opts.Cmdlines.Get(e.Pid),
		}).Debug("awaiting permission decision")
	}
	return nil
}

func (l *Loop) handleControl() error {
	n, err := unix.Read(l.opts.ControlFd, l.ctlBuf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("command handling: control read: %w", err)
	}

	if n == 0 {
		if line, ok := l.lines.Flush(); ok {
			if err := l.handleLine(line); err != nil {
				return err
			}
		}
		return l.closeControl()
	}

	for _, line := range l.lines.Feed(l.ctlBuf[:n]) {
		if err := l.handleLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) handleLine(line string) error {
	err := l.HandleCommand(line)
	if err != nil && isRejection(err) {
		logrus.WithError(err).Warn("invalid command")
		return nil
	}
	return err
}

// HandleCommand applies one control line. Malformed lines and unknown fds are
// rejected without writing anything; other errors are fatal.
func (l *Loop) HandleCommand(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		return err
	}

	item, ok := l.pending.Take(cmd.Fd)
	if !ok {
		return fmt.Errorf("fd %d: %w", cmd.Fd, ErrNotPending)
	}

	logPending(item, cmd.Response).Debug("decision received")
	return l.respond(cmd.Fd, cmd.Response)
}

func isRejection(err error) bool {
	var perr *flagset.ParseError
	return errors.As(err, &perr) ||
		errors.Is(err, ErrMalformedCommand) ||
		errors.Is(err, ErrNotPending)
}

func (l *Loop) respond(fd int32, resp flagset.Flag[Response]) error {
	if err := l.responder.Respond(fd, resp); err != nil {
		return fmt.Errorf("command handling: %w", err)
	}
	return nil
}

// closeControl ends the control channel. Nobody can answer from now on, so
// everything pending is answered with the EOF response.
func (l *Loop) closeControl() error {
	l.controlClosed = true
	logrus.WithFields(logrus.Fields{
		"pending":  l.pending.Len(),
		"response": l.opts.EOFResponse,
	}).Warn("control input closed")

	for _, item := range l.pending.Drain() {
		logPending(item, l.opts.EOFResponse).Info("answering pending event automatically")
		if err := l.respond(item.Fd, l.opts.EOFResponse); err != nil {
			return err
		}
	}
	return nil
}

// best-effort, used on shutdown
func (l *Loop) answerAll(resp flagset.Flag[Response]) {
	for _, item := range l.pending.Drain() {
		log := logPending(item, resp)
		log.Info("answering pending event automatically")
		if err := l.responder.Respond(item.Fd, resp); err != nil {
			log.WithError(err).Warn("failed to answer pending event")
		}
	}
}

func logPending(item PendingItem, resp flagset.Flag[Response]) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"fd":       item.Fd,
		"pid":      item.Pid,
		"path":     item.Path,
		"waited":   time.Since(item.Since).Round(time.Millisecond),
		"response": resp,
	})
}
