package pipe

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Timeout is a receive timeout in milliseconds.
type Timeout int32

const (
	// Poll returns immediately.
	Poll Timeout = 0
	// PendForever waits until a message arrives or the pipe closes.
	PendForever Timeout = -1
)

// MaxNameLen is the longest pipe name.
const MaxNameLen = 32

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateName checks a pipe name.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLen || !nameRe.MatchString(name) {
		return fmt.Errorf("pipe name %q: %w", name, types.ErrBadArgument)
	}
	return nil
}

// Item is one queued message reference.
type Item struct {
	Buf   bufpool.Buffer
	MsgID msg.MsgID
}

// Pipe is a bounded FIFO mailbox. Any goroutine may enqueue; one owner
// dequeues. Enqueue never blocks.
type Pipe struct {
	id    handle.ID
	name  string
	owner string
	depth int

	queue chan Item
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	inFlight map[msg.MsgID]int
	stats    types.PipeStats
}

// New creates an open pipe holding at most depth items.
func New(id handle.ID, name string, depth int, owner string) (*Pipe, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("pipe depth %d: %w", depth, types.ErrBadArgument)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Pipe{
		id:       id,
		name:     name,
		owner:    owner,
		depth:    depth,
		queue:    make(chan Item, depth),
		done:     make(chan struct{}),
		inFlight: make(map[msg.MsgID]int),
		stats:    types.PipeStats{Depth: depth},
	}, nil
}

func (p *Pipe) ID() handle.ID  { return p.id }
func (p *Pipe) Name() string   { return p.name }
func (p *Pipe) Owner() string  { return p.owner }
func (p *Pipe) Depth() int     { return p.depth }
func (p *Pipe) Len() int       { return len(p.queue) }
func (p *Pipe) String() string { return p.name + "(" + p.id.String() + ")" }

// Enqueue appends item unless the pipe is closed, the item's message id
// already has msgLimit undelivered instances here, or the pipe is at
// depth. The caller keeps ownership of item on error.
func (p *Pipe) Enqueue(item Item, msgLimit int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("enqueue to %s: %w", p, types.ErrPipeClosed)
	}
	if p.inFlight[item.MsgID] >= msgLimit {
		p.stats.LimitDrops++
		return fmt.Errorf("enqueue msg id %s to %s: %w", item.MsgID, p, types.ErrMsgLimit)
	}
	select {
	case p.queue <- item:
	default:
		p.stats.OverflowDrops++
		return fmt.Errorf("enqueue msg id %s to %s: %w", item.MsgID, p, types.ErrPipeFull)
	}

	p.inFlight[item.MsgID]++
	p.stats.Sent++
	if n := len(p.queue); n > p.stats.Peak {
		p.stats.Peak = n
	}
	return nil
}

// Dequeue removes the oldest item, waiting according to timeout.
func (p *Pipe) Dequeue(timeout Timeout) (Item, error) {
	switch {
	case timeout == Poll:
		select {
		case item := <-p.queue:
			return p.delivered(item), nil
		default:
			return Item{}, p.emptyErr()
		}

	case timeout == PendForever:
		select {
		case item := <-p.queue:
			return p.delivered(item), nil
		case <-p.done:
			return Item{}, fmt.Errorf("receive on %s: %w", p, types.ErrPipeClosed)
		}

	case timeout > 0:
		timer := time.NewTimer(time.Duration(timeout) * time.Millisecond)
		defer timer.Stop()
		select {
		case item := <-p.queue:
			return p.delivered(item), nil
		case <-p.done:
			return Item{}, fmt.Errorf("receive on %s: %w", p, types.ErrPipeClosed)
		case <-timer.C:
			return Item{}, fmt.Errorf("receive on %s after %dms: %w", p, timeout, types.ErrTimeout)
		}

	default:
		return Item{}, fmt.Errorf("receive timeout %d: %w", timeout, types.ErrBadArgument)
	}
}

func (p *Pipe) emptyErr() error {
	select {
	case <-p.done:
		return fmt.Errorf("receive on %s: %w", p, types.ErrPipeClosed)
	default:
		return fmt.Errorf("poll on %s: %w", p, types.ErrTimeout)
	}
}

func (p *Pipe) delivered(item Item) Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := p.inFlight[item.MsgID] - 1; n > 0 {
		p.inFlight[item.MsgID] = n
	} else {
		delete(p.inFlight, item.MsgID)
	}
	p.stats.Received++
	return item
}

// InFlight returns the undelivered count for id.
func (p *Pipe) InFlight(id msg.MsgID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[id]
}

// Close rejects further enqueues, wakes blocked receivers and returns the
// items still queued. The caller releases them.
func (p *Pipe) Close() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var drained []Item
	for {
		select {
		case item := <-p.queue:
			drained = append(drained, item)
		default:
			clear(p.inFlight)
			return drained
		}
	}
}

// Closed reports whether Close was called.
func (p *Pipe) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats returns a usage snapshot.
func (p *Pipe) Stats() types.PipeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Current = len(p.queue)
	return s
}

// ResetStats zeroes the counters. Peak restarts at the current length.
func (p *Pipe) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = types.PipeStats{Depth: p.depth, Peak: len(p.queue)}
}
