package handle

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// ID is an opaque resource handle. The low 16 bits hold the slot index plus
// one, the high 16 bits the slot generation. The zero value is never issued.
// Generations wrap after 65535 releases of one slot, at which point a handle
// kept that long validates again.
type ID uint32

// Invalid is the zero handle.
const Invalid ID = 0

// MaxCapacity is the largest slot table a handle can address.
const MaxCapacity = 0xFFFF

func makeID(index int, gen uint16) ID {
	return ID(uint32(gen)<<16 | uint32(index+1))
}

func (id ID) index() int { return int(uint32(id)&0xFFFF) - 1 }

func (id ID) generation() uint16 { return uint16(uint32(id) >> 16) }

// String formats the handle as kind-agnostic "index:generation".
func (id ID) String() string {
	if id == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d", id.index(), id.generation())
}

type slot[T any] struct {
	gen   uint16
	inUse bool
	value T
}

// Table is a fixed-size slot table issuing generation-checked handles.
// All methods are safe for concurrent use.
type Table[T any] struct {
	kind string

	mu    sync.RWMutex
	slots []slot[T]
	used  int

	// free is a ring of released slot indexes, oldest first.
	free     []int
	freeHead int
	freeLen  int
}

// NewTable creates a table with room for capacity live handles. kind names
// the resource in error messages.
func NewTable[T any](capacity int, kind string) (*Table[T], error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%s table capacity %d: %w", kind, capacity, types.ErrBadArgument)
	}
	t := &Table[T]{
		kind:  kind,
		slots: make([]slot[T], capacity),
		free:  make([]int, capacity),
	}
	for i := range t.slots {
		t.slots[i].gen = 1
		t.free[i] = i
	}
	t.freeLen = capacity
	return t, nil
}

// Allocate stores v in a free slot and returns its handle.
func (t *Table[T]) Allocate(v T) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.freeLen == 0 {
		return Invalid, fmt.Errorf("%s table full (%d): %w", t.kind, len(t.slots), types.ErrResourceExhausted)
	}
	i := t.popFreeLocked()

	s := &t.slots[i]
	s.inUse = true
	s.value = v
	t.used++
	return makeID(i, s.gen), nil
}

// AllocateFunc reserves a slot and stores the value built by fn, which
// receives the handle the value will live under. If fn fails the slot is
// returned unused and keeps its generation.
func (t *Table[T]) AllocateFunc(fn func(ID) (T, error)) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.freeLen == 0 {
		return Invalid, fmt.Errorf("%s table full (%d): %w", t.kind, len(t.slots), types.ErrResourceExhausted)
	}
	i := t.free[t.freeHead]
	s := &t.slots[i]
	id := makeID(i, s.gen)

	v, err := fn(id)
	if err != nil {
		return Invalid, err
	}
	t.popFreeLocked()
	s.inUse = true
	s.value = v
	t.used++
	return id, nil
}

// Validate reports whether id names a live slot.
func (t *Table[T]) Validate(id ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.lookupLocked(id)
	return ok
}

// Lookup returns the value stored under id.
func (t *Table[T]) Lookup(id ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.lookupLocked(id)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Release frees the slot and returns the value it held. The slot's
// generation advances so id, and every copy of it, becomes stale.
func (t *Table[T]) Release(id ID) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, ok := t.lookupLocked(id)
	if !ok {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.inUse = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.used--
	t.free[(t.freeHead+t.freeLen)%len(t.free)] = id.index()
	t.freeLen++
	return v, true
}

func (t *Table[T]) popFreeLocked() int {
	i := t.free[t.freeHead]
	t.freeHead = (t.freeHead + 1) % len(t.free)
	t.freeLen--
	return i
}

// Range calls fn for every live handle in index order until fn returns
// false. fn runs under the table's read lock and must not call back into
// the table's mutating methods.
func (t *Table[T]) Range(fn func(ID, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.slots {
		s := &t.slots[i]
		if !s.inUse {
			continue
		}
		if !fn(makeID(i, s.gen), s.value) {
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.used
}

// Cap returns the table capacity.
func (t *Table[T]) Cap() int { return len(t.slots) }

func (t *Table[T]) lookupLocked(id ID) (*slot[T], bool) {
	i := id.index()
	if id == Invalid || i < 0 || i >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[i]
	if !s.inUse || s.gen != id.generation() {
		return nil, false
	}
	return s, true
}
