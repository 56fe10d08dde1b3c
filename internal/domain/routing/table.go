package routing

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// MaxMsgLimit is the largest per-route message limit.
const MaxMsgLimit = 0xFFFF

// Destination is one subscribed pipe for a message id.
type Destination struct {
	Pipe     handle.ID
	QoS      types.QoS
	MsgLimit int
	Active   bool
	Local    bool
}

// Route pairs a message id with one of its destinations.
type Route struct {
	MsgID msg.MsgID
	Destination
}

type entry struct {
	id  msg.MsgID
	seq atomic.Uint32

	// sendMu orders sequenced sends of id from taking a count to the
	// last enqueue.
	sendMu sync.Mutex

	// dests is replaced, never mutated, once published.
	dests []Destination
}

// Table maps message ids to their destination pipes. Lookups run
// concurrently with each other and only briefly exclude writers.
type Table struct {
	maxMsgIDs int
	maxDests  int
	highest   msg.MsgID

	mu      sync.RWMutex
	entries map[msg.MsgID]*entry
}

// Option configures a Table.
type Option func(*Table)

// WithHighestMsgID sets the largest routable message id.
func WithHighestMsgID(id msg.MsgID) Option {
	return func(t *Table) { t.highest = id }
}

// New creates a table for at most maxMsgIDs ids with at most
// maxDestsPerMsgID destinations each.
func New(maxMsgIDs, maxDestsPerMsgID int, opts ...Option) (*Table, error) {
	if maxMsgIDs <= 0 || maxDestsPerMsgID <= 0 {
		return nil, fmt.Errorf("routing table %d ids x %d destinations: %w",
			maxMsgIDs, maxDestsPerMsgID, types.ErrBadArgument)
	}
	t := &Table{
		maxMsgIDs: maxMsgIDs,
		maxDests:  maxDestsPerMsgID,
		highest:   msg.DefaultHighestValidMsgID,
		entries:   make(map[msg.MsgID]*entry, maxMsgIDs),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ValidMsgID reports whether id is routable.
func (t *Table) ValidMsgID(id msg.MsgID) bool { return id.IsValid(t.highest) }

// Subscribe routes id to pipe. Subscribing an existing pair updates its
// QoS, limit and locality in place and reports created == false.
func (t *Table) Subscribe(id msg.MsgID, pipe handle.ID, qos types.QoS, msgLimit int, local bool) (created bool, err error) {
	if !t.ValidMsgID(id) {
		return false, fmt.Errorf("subscribe msg id %s: %w", id, types.ErrBadArgument)
	}
	if pipe == handle.Invalid {
		return false, fmt.Errorf("subscribe msg id %s to invalid pipe: %w", id, types.ErrBadArgument)
	}
	if msgLimit <= 0 || msgLimit > MaxMsgLimit {
		return false, fmt.Errorf("subscribe msg id %s with limit %d: %w", id, msgLimit, types.ErrBadArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		if len(t.entries) >= t.maxMsgIDs && !t.reclaimLocked() {
			return false, fmt.Errorf("subscribe msg id %s: %w", id, types.ErrMaxMsgIDsMet)
		}
		e = &entry{id: id}
		t.entries[id] = e
	}

	d := Destination{Pipe: pipe, QoS: qos, MsgLimit: msgLimit, Active: true, Local: local}
	next := slices.Clone(e.dests)
	if i := indexOf(next, pipe); i >= 0 {
		d.Active = next[i].Active
		next[i] = d
		e.dests = next
		return false, nil
	}
	if len(next) >= t.maxDests {
		return false, fmt.Errorf("subscribe msg id %s: %w", id, types.ErrMaxDestsMet)
	}
	e.dests = append(next, d)
	return true, nil
}

// Unsubscribe removes the route from id to pipe.
func (t *Table) Unsubscribe(id msg.MsgID, pipe handle.ID) error {
	if !t.ValidMsgID(id) {
		return fmt.Errorf("unsubscribe msg id %s: %w", id, types.ErrBadArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return fmt.Errorf("unsubscribe msg id %s pipe %s: %w", id, pipe, types.ErrNoSubscription)
	}
	i := indexOf(e.dests, pipe)
	if i < 0 {
		return fmt.Errorf("unsubscribe msg id %s pipe %s: %w", id, pipe, types.ErrNoSubscription)
	}
	e.dests = slices.Delete(slices.Clone(e.dests), i, i+1)
	return nil
}

// SetActive enables or disables delivery on one route without removing it.
func (t *Table) SetActive(id msg.MsgID, pipe handle.ID, active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return fmt.Errorf("route msg id %s pipe %s: %w", id, pipe, types.ErrNoSubscription)
	}
	i := indexOf(e.dests, pipe)
	if i < 0 {
		return fmt.Errorf("route msg id %s pipe %s: %w", id, pipe, types.ErrNoSubscription)
	}
	next := slices.Clone(e.dests)
	next[i].Active = active
	e.dests = next
	return nil
}

// Lookup returns the destinations for id. The slice is shared and must
// not be modified; later subscription changes do not affect it.
func (t *Table) Lookup(id msg.MsgID) []Destination {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[id]; ok {
		return e.dests
	}
	return nil
}

// NextSequence advances and returns the telemetry sequence count for id.
// ok is false when id has no route entry.
func (t *Table) NextSequence(id msg.MsgID) (seq uint16, ok bool) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return 0, false
	}
	for {
		old := e.seq.Load()
		next := uint32(msg.NextSequenceCount(uint16(old)))
		if e.seq.CompareAndSwap(old, next) {
			return uint16(next), true
		}
	}
}

// LockSend serializes sequenced sends of id. Holding it from NextSequence
// through delivery keeps counts increasing in every pipe's receive order.
// The returned func releases it; for an id without an entry it does nothing.
func (t *Table) LockSend(id msg.MsgID) (unlock func()) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return func() {}
	}
	e.sendMu.Lock()
	return e.sendMu.Unlock
}

// RemovePipe drops every route to pipe and returns how many there were.
func (t *Table) RemovePipe(pipe handle.ID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if i := indexOf(e.dests, pipe); i >= 0 {
			e.dests = slices.Delete(slices.Clone(e.dests), i, i+1)
			n++
		}
	}
	return n
}

// Subscriptions returns the ids routed to pipe, in ascending order.
func (t *Table) Subscriptions(pipe handle.ID) []msg.MsgID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []msg.MsgID
	for id, e := range t.entries {
		if indexOf(e.dests, pipe) >= 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns every route ordered by message id, then subscription
// order.
func (t *Table) Snapshot() []Route {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	views := make([][]Destination, len(entries))
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	for i, e := range entries {
		views[i] = e.dests
	}
	t.mu.RUnlock()

	var routes []Route
	for i, e := range entries {
		for _, d := range views[i] {
			routes = append(routes, Route{MsgID: e.id, Destination: d})
		}
	}
	return routes
}

// MapEntry summarizes one message id.
type MapEntry struct {
	MsgID        msg.MsgID
	Destinations int
	Sequence     uint16
}

// Map returns one summary per known message id, ordered by id.
func (t *Table) Map() []MapEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]MapEntry, 0, len(t.entries))
	for id, e := range t.entries {
		out = append(out, MapEntry{MsgID: id, Destinations: len(e.dests), Sequence: uint16(e.seq.Load())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MsgID < out[j].MsgID })
	return out
}

// Len returns the number of message ids holding a route entry.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Cap returns the maximum number of message ids.
func (t *Table) Cap() int { return t.maxMsgIDs }

// reclaimLocked frees the lowest empty entry so a new id can take its
// place. Sequence continuity for that id is lost.
func (t *Table) reclaimLocked() bool {
	victim := msg.InvalidMsgID
	for id, e := range t.entries {
		if len(e.dests) == 0 && id < victim {
			victim = id
		}
	}
	if victim == msg.InvalidMsgID {
		return false
	}
	delete(t.entries, victim)
	return true
}

func indexOf(dests []Destination, pipe handle.ID) int {
	return slices.IndexFunc(dests, func(d Destination) bool { return d.Pipe == pipe })
}
