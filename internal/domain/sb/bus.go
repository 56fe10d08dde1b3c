package sb

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/domain/routing"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/id"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Config holds the start-up limits of a bus.
type Config struct {
	MaxMsgSize        int
	PoolBuffers       int
	MaxPipes          int
	MaxPipeDepth      int
	MaxMsgIDs         int
	MaxDestsPerMsgID  int
	DefaultMsgLimit   int
	HighestValidMsgID msg.MsgID
	HousekeepingMsgID msg.MsgID

	// EventBurst events per id may be logged back to back, then one per
	// EventInterval. A zero burst disables filtering.
	EventBurst    int
	EventInterval time.Duration
}

// DefaultConfig returns the platform default limits.
func DefaultConfig() Config {
	return Config{
		MaxMsgSize:        32768,
		PoolBuffers:       64,
		MaxPipes:          64,
		MaxPipeDepth:      256,
		MaxMsgIDs:         256,
		MaxDestsPerMsgID:  16,
		DefaultMsgLimit:   4,
		HighestValidMsgID: msg.DefaultHighestValidMsgID,
		HousekeepingMsgID: 0x0803,
		EventBurst:        8,
		EventInterval:     time.Second,
	}
}

// Bus is one software bus instance: the buffer pool, routing table and
// pipe table shared by every task that publishes or subscribes. All
// methods are safe for concurrent use.
type Bus struct {
	id     id.BusID
	cfg    Config
	log    *zap.Logger
	mx     *monitoring.Metrics
	clock  Clock
	events *eventFilter

	pool   *bufpool.Pool
	routes *routing.Table
	pipes  *handle.Table[*pipe.Pipe]

	// pipeMu orders pipe creation and deletion against subscription so a
	// route can never name a deleted pipe.
	pipeMu sync.RWMutex
	names  map[string]handle.ID

	counters counters
	closed   atomic.Bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bus) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics reports bus activity to m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Bus) { b.mx = m }
}

// WithClock sets the time source used for telemetry time stamps.
func WithClock(c Clock) Option {
	return func(b *Bus) {
		if c != nil {
			b.clock = c
		}
	}
}

// New builds a bus sized by cfg. Nothing is allocated after New returns.
func New(cfg Config, opts ...Option) (*Bus, error) {
	if cfg.DefaultMsgLimit <= 0 || cfg.DefaultMsgLimit > routing.MaxMsgLimit {
		return nil, fmt.Errorf("default msg limit %d: %w", cfg.DefaultMsgLimit, types.ErrBadArgument)
	}
	if cfg.MaxPipeDepth <= 0 {
		return nil, fmt.Errorf("max pipe depth %d: %w", cfg.MaxPipeDepth, types.ErrBadArgument)
	}
	if cfg.MaxMsgSize < msg.PrimaryHeaderSize {
		return nil, fmt.Errorf("max msg size %d: %w", cfg.MaxMsgSize, types.ErrBadArgument)
	}

	pool, err := bufpool.New(cfg.PoolBuffers, cfg.MaxMsgSize, bufpool.WithMaxRefs(cfg.MaxDestsPerMsgID+2))
	if err != nil {
		return nil, fmt.Errorf("buffer pool: %w", err)
	}
	routes, err := routing.New(cfg.MaxMsgIDs, cfg.MaxDestsPerMsgID, routing.WithHighestMsgID(cfg.HighestValidMsgID))
	if err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}
	pipes, err := handle.NewTable[*pipe.Pipe](cfg.MaxPipes, "pipe")
	if err != nil {
		return nil, fmt.Errorf("pipe table: %w", err)
	}

	b := &Bus{
		id:     id.NewBusID(),
		cfg:    cfg,
		log:    zap.NewNop(),
		clock:  NewSystemClock(MissionEpoch),
		pool:   pool,
		routes: routes,
		pipes:  pipes,
		names:  make(map[string]handle.ID, cfg.MaxPipes),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With(zap.String("bus", b.id.String()))
	b.events = newEventFilter(b.log, cfg.EventBurst, cfg.EventInterval)

	b.events.emit(EventInit, zapcore.InfoLevel, "software bus initialized",
		zap.Int("max_msg_size", cfg.MaxMsgSize),
		zap.Int("pool_buffers", cfg.PoolBuffers),
		zap.Int("max_pipes", cfg.MaxPipes),
		zap.Int("max_msg_ids", cfg.MaxMsgIDs),
		zap.Int("max_dests", cfg.MaxDestsPerMsgID))
	return b, nil
}

// ID returns the bus instance id.
func (b *Bus) ID() id.BusID { return b.id }

// Config returns the limits the bus was built with.
func (b *Bus) Config() Config { return b.cfg }

// Clock returns the bus time source.
func (b *Bus) Clock() Clock { return b.clock }

// Close deletes every pipe, waking blocked receivers and releasing queued
// buffers. Transmit and pipe creation fail afterwards.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	// createPipe re-checks closed under pipeMu, so no pipe can appear
	// after this snapshot.
	var ids []handle.ID
	b.pipeMu.Lock()
	b.pipes.Range(func(id handle.ID, _ *pipe.Pipe) bool {
		ids = append(ids, id)
		return true
	})
	b.pipeMu.Unlock()
	for _, pid := range ids {
		if err := b.DeletePipe(pid); err != nil {
			b.log.Warn("close: delete pipe", zap.Stringer("pipe", pid), zap.Error(err))
		}
	}
	b.log.Info("software bus closed", zap.Int("pipes_deleted", len(ids)))
	return nil
}

func (b *Bus) checkOpen() error {
	if b.closed.Load() {
		return types.ErrBusClosed
	}
	return nil
}

func (b *Bus) lookupPipe(pid handle.ID) (*pipe.Pipe, error) {
	p, ok := b.pipes.Lookup(pid)
	if !ok {
		return nil, fmt.Errorf("pipe %s: %w", pid, types.ErrBadArgument)
	}
	return p, nil
}

type counters struct {
	msgsSent         atomic.Uint64
	msgsDelivered    atomic.Uint64
	noSubscribers    atomic.Uint64
	sendErrors       atomic.Uint64
	receiveErrors    atomic.Uint64
	receiveTimeouts  atomic.Uint64
	createPipeErrors atomic.Uint64
	subscribeErrors  atomic.Uint64
	pipeOverflow     atomic.Uint64
	msgLimit         atomic.Uint64
	bufferInvalid    atomic.Uint64
	bufferAlloc      atomic.Uint64
	duplicateSubs    atomic.Uint64
}

func (c *counters) snapshot() types.Counters {
	return types.Counters{
		MsgsSent:              c.msgsSent.Load(),
		MsgsDelivered:         c.msgsDelivered.Load(),
		NoSubscribers:         c.noSubscribers.Load(),
		MsgSendErrors:         c.sendErrors.Load(),
		MsgReceiveErrors:      c.receiveErrors.Load(),
		ReceiveTimeouts:       c.receiveTimeouts.Load(),
		CreatePipeErrors:      c.createPipeErrors.Load(),
		SubscribeErrors:       c.subscribeErrors.Load(),
		PipeOverflowErrors:    c.pipeOverflow.Load(),
		MsgLimitErrors:        c.msgLimit.Load(),
		BufferInvalidErrors:   c.bufferInvalid.Load(),
		BufferAllocErrors:     c.bufferAlloc.Load(),
		DuplicateSubscription: c.duplicateSubs.Load(),
	}
}

func (c *counters) reset() {
	for _, v := range []*atomic.Uint64{
		&c.msgsSent, &c.msgsDelivered, &c.noSubscribers, &c.sendErrors,
		&c.receiveErrors, &c.receiveTimeouts, &c.createPipeErrors,
		&c.subscribeErrors, &c.pipeOverflow, &c.msgLimit, &c.bufferInvalid,
		&c.bufferAlloc, &c.duplicateSubs,
	} {
		v.Store(0)
	}
}
