package fanotify

import (
	"errors"
	"slices"
	"time"
)

const DefaultPendingLimit = 1024

var (
	ErrPendingFull = errors.New("too many pending permission events")
	ErrNotPending  = errors.New("fd is not awaiting a decision")
)

type PendingItem struct {
	Fd    int32
	Pid   int32
	Path  string
	Since time.Time
}

// Pending tracks permission-event fds that are still open and waiting for a response.
// An fd is removed before it's closed, so a stale or repeated command can't close it twice.
type Pending struct {
	items map[int32]PendingItem
	limit int
}

func NewPending(limit int) *Pending {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return &Pending{
		items: make(map[int32]PendingItem),
		limit: limit,
	}
}

func (p *Pending) Add(e Entry) error {
	if len(p.items) >= p.limit {
		return ErrPendingFull
	}
	p.items[e.Fd] = PendingItem{
		Fd:    e.Fd,
		Pid:   e.Pid,
		Path:  e.Path,
		Since: time.Now(),
	}
	return nil
}

func (p *Pending) Take(fd int32) (PendingItem, bool) {
	item, ok := p.items[fd]
	if ok {
		delete(p.items, fd)
	}
	return item, ok
}

func (p *Pending) Len() int {
	return len(p.items)
}

// Drain removes and returns everything, ordered by fd.
func (p *Pending) Drain() []PendingItem {
	items := make([]PendingItem, 0, len(p.items))
	for _, item := range p.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b PendingItem) int {
		return int(a.Fd) - int(b.Fd)
	})
	clear(p.items)
	return items
}
