package poll

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/eapache/queue"
)

var ErrMailboxClosed = errors.New("mailbox closed")

// mailbox buffers frames pushed to an HTTP client between two of its
// requests. It is the Transport of sessions served over HTTP.
type mailbox struct {
	tid   core.TransportID
	limit int

	mu       sync.Mutex
	q        *queue.Queue
	closed   bool
	lastSeen time.Time
}

func newMailbox(tid core.TransportID, limit int, now time.Time) *mailbox {
	return &mailbox{tid: tid, limit: limit, q: queue.New(), lastSeen: now}
}

func (b *mailbox) TrySend(f core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrMailboxClosed
	}
	if b.limit > 0 && b.q.Length() >= b.limit {
		return core.ErrBackpressure
	}
	b.q.Add(f)
	return nil
}

// Close discards pending frames; later sends fail.
func (b *mailbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.q = queue.New()
}

func (b *mailbox) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// reopen makes a closed mailbox usable again, which happens when a client
// comes back on a transport whose session was dropped.
func (b *mailbox) reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = false
}

func (b *mailbox) Drain() []core.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.Frame, 0, b.q.Length())
	for b.q.Length() > 0 {
		out = append(out, b.q.Remove().(core.Frame))
	}
	return out
}

func (b *mailbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Length()
}

// absorb appends the pending frames of other, keeping their order.
func (b *mailbox) absorb(other *mailbox) {
	if other == b {
		return
	}
	frames := other.Drain()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range frames {
		b.q.Add(f)
	}
}

func (b *mailbox) touch(now time.Time) {
	b.mu.Lock()
	b.lastSeen = now
	b.mu.Unlock()
}

func (b *mailbox) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen
}
