package fanotify

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Gate turns raw records into entries and decides descriptor ownership:
// non-permission fds are closed right after resolution, permission fds stay
// open for a later response.
type Gate struct {
	fds Descriptors
}

func NewGate(fds Descriptors) *Gate {
	return &Gate{fds: fds}
}

func (g *Gate) Admit(rec RawRecord) (Entry, error) {
	e := Entry{
		Mask: Event(rec.Mask),
		Fd:   rec.Fd,
		Pid:  rec.Pid,
	}
	if rec.Fd < 0 {
		// overflow events carry FAN_NOFD
		e.Fd = -1
		return e, nil
	}

	path, err := g.fds.Resolve(rec.Fd)
	if err != nil {
		if !e.IsPermission() {
			g.release(rec.Fd)
		}
		return Entry{}, fmt.Errorf("fd %d: %w", rec.Fd, err)
	}
	e.Path = path

	if !e.IsPermission() {
		g.release(rec.Fd)
	}
	return e, nil
}

// AdmitAll admits a whole batch in order. If one record fails, the non-permission
// fds of the records after it are still closed before returning.
func (g *Gate) AdmitAll(recs []RawRecord) ([]Entry, error) {
	entries := make([]Entry, 0, len(recs))
	for i, rec := range recs {
		e, err := g.Admit(rec)
		if err != nil {
			for _, rest := range recs[i+1:] {
				if rest.Fd >= 0 && !IsPermission(Event(rest.Mask)) {
					g.release(rest.Fd)
				}
			}
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (g *Gate) release(fd int32) {
	if err := g.fds.Close(fd); err != nil {
		logrus.WithError(err).WithField("fd", fd).Warn("failed to close event fd")
	}
}
