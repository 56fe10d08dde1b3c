package bufpool

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// DefaultMaxRefs bounds the live references to one buffer.
const DefaultMaxRefs = 64

// Buffer is one reference to a pool slot. Each holder owns its own
// Buffer; copies of a Buffer value are the same reference and become
// invalid together once it is released or handed on. The zero value
// refers to nothing.
type Buffer struct {
	pool *Pool
	slot uint32
	gen  uint32
	ref  uint32
}

// IsZero reports whether b is the zero Buffer.
func (b Buffer) IsZero() bool { return b.pool == nil }

// Bytes returns the buffer contents, or nil if b is no longer live.
func (b Buffer) Bytes() []byte {
	if b.pool == nil {
		return nil
	}
	data, err := b.pool.Bytes(b)
	if err != nil {
		return nil
	}
	return data
}

func (b Buffer) String() string {
	if b.pool == nil {
		return "buffer(nil)"
	}
	return fmt.Sprintf("buffer(%d:%d/%d)", b.slot, b.gen, b.ref)
}

type slotState struct {
	gen     uint32
	size    int
	nextRef uint32
	live    []uint32
}

// Pool is a fixed arena of equally sized message buffers. It never grows.
// All methods are safe for concurrent use.
type Pool struct {
	maxSize int
	maxRefs int
	arena   []byte

	mu    sync.Mutex
	slots []slotState
	free  []uint32
	stats types.PoolStats
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxRefs sets how many references one buffer may have at once.
func WithMaxRefs(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxRefs = n
		}
	}
}

// New creates a pool of capacity buffers of maxSize bytes each.
func New(capacity, maxSize int, opts ...Option) (*Pool, error) {
	if capacity <= 0 || maxSize <= 0 {
		return nil, fmt.Errorf("pool %d x %d bytes: %w", capacity, maxSize, types.ErrBadArgument)
	}
	p := &Pool{
		maxSize: maxSize,
		maxRefs: DefaultMaxRefs,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.arena = make([]byte, capacity*maxSize)
	p.slots = make([]slotState, capacity)
	p.free = make([]uint32, 0, capacity)
	for i := capacity - 1; i >= 0; i-- {
		p.slots[i] = slotState{gen: 1, live: make([]uint32, 0, p.maxRefs)}
		p.free = append(p.free, uint32(i))
	}
	p.stats = types.PoolStats{Capacity: capacity, BufferSize: maxSize}
	return p, nil
}

// MaxSize returns the size of every buffer in the pool.
func (p *Pool) MaxSize() int { return p.maxSize }

// Allocate reserves a buffer of size bytes for the caller. The contents are
// whatever the previous user left there.
func (p *Pool) Allocate(size int) (Buffer, error) {
	if size < 0 {
		return Buffer{}, fmt.Errorf("allocate %d bytes: %w", size, types.ErrBadArgument)
	}
	if size > p.maxSize {
		return Buffer{}, fmt.Errorf("allocate %d bytes, max %d: %w", size, p.maxSize, types.ErrMsgTooBig)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		p.stats.Exhausted++
		return Buffer{}, fmt.Errorf("buffer pool of %d: %w", len(p.slots), types.ErrResourceExhausted)
	}
	i := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	s := &p.slots[i]
	s.size = size
	s.nextRef = 0
	s.live = s.live[:0]

	p.stats.InUse++
	p.stats.Allocations++
	if p.stats.InUse > p.stats.PeakInUse {
		p.stats.PeakInUse = p.stats.InUse
	}
	return p.mintLocked(i, s), nil
}

// Release drops the reference b. The slot returns to the free list when
// its last reference is released.
func (p *Pool) Release(b Buffer) error {
	if b.pool == nil {
		return fmt.Errorf("release zero buffer: %w", types.ErrBadArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, at, err := p.lookupLocked(b)
	if err != nil {
		return err
	}
	p.dropLocked(b.slot, s, at)
	return nil
}

// Share mints an additional reference to the same slot. The original
// reference stays valid.
func (p *Pool) Share(b Buffer) (Buffer, error) {
	if b.pool == nil {
		return Buffer{}, fmt.Errorf("share zero buffer: %w", types.ErrBadArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, _, err := p.lookupLocked(b)
	if err != nil {
		return Buffer{}, err
	}
	if len(s.live) >= p.maxRefs {
		return Buffer{}, fmt.Errorf("%s has %d references: %w", b, len(s.live), types.ErrResourceExhausted)
	}
	return p.mintLocked(b.slot, s), nil
}

// Transfer consumes b and returns a fresh reference to the same slot.
// Used when ownership moves to another holder so the old value can no
// longer be used.
func (p *Pool) Transfer(b Buffer) (Buffer, error) {
	if b.pool == nil {
		return Buffer{}, fmt.Errorf("transfer zero buffer: %w", types.ErrBadArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, at, err := p.lookupLocked(b)
	if err != nil {
		return Buffer{}, err
	}
	s.live = append(s.live[:at], s.live[at+1:]...)
	return p.mintLocked(b.slot, s), nil
}

// Bytes returns the contents of b. The slice aliases pool memory and is
// only meaningful while b is live.
func (p *Pool) Bytes(b Buffer) ([]byte, error) {
	if b.pool == nil {
		return nil, fmt.Errorf("bytes of zero buffer: %w", types.ErrBadArgument)
	}

	p.mu.Lock()
	s, _, err := p.lookupLocked(b)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	size := s.size
	p.mu.Unlock()

	off := int(b.slot) * p.maxSize
	return p.arena[off : off+size : off+size], nil
}

// Refs returns the number of live references to b's slot.
func (p *Pool) Refs(b Buffer) (int, error) {
	if b.pool == nil {
		return 0, fmt.Errorf("refs of zero buffer: %w", types.ErrBadArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, _, err := p.lookupLocked(b)
	if err != nil {
		return 0, err
	}
	return len(s.live), nil
}

// Validate reports whether b is a live reference.
func (p *Pool) Validate(b Buffer) error {
	_, err := p.Refs(b)
	return err
}

// Stats returns a usage snapshot.
func (p *Pool) Stats() types.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ResetPeak resets the high-water mark to the current usage.
func (p *Pool) ResetPeak() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.PeakInUse = p.stats.InUse
	p.stats.Exhausted = 0
}

func (p *Pool) mintLocked(i uint32, s *slotState) Buffer {
	s.nextRef++
	s.live = append(s.live, s.nextRef)
	return Buffer{pool: p, slot: i, gen: s.gen, ref: s.nextRef}
}

func (p *Pool) lookupLocked(b Buffer) (*slotState, int, error) {
	if b.pool != p {
		return nil, 0, fmt.Errorf("%s belongs to another pool: %w", b, types.ErrBufferInvalid)
	}
	if int(b.slot) >= len(p.slots) {
		return nil, 0, fmt.Errorf("%s out of range: %w", b, types.ErrBufferInvalid)
	}
	s := &p.slots[b.slot]
	if s.gen != b.gen {
		return nil, 0, fmt.Errorf("%s is stale: %w", b, types.ErrBufferInvalid)
	}
	for at, r := range s.live {
		if r == b.ref {
			return s, at, nil
		}
	}
	return nil, 0, fmt.Errorf("%s was already released: %w", b, types.ErrBufferInvalid)
}

func (p *Pool) dropLocked(i uint32, s *slotState, at int) {
	s.live = append(s.live[:at], s.live[at+1:]...)
	if len(s.live) > 0 {
		return
	}
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.size = 0
	p.free = append(p.free, i)
	p.stats.InUse--
}
