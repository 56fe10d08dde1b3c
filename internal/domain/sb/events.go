package sb

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// EventID identifies a bus event for filtering.
type EventID uint16

const (
	EventInit EventID = iota + 1
	EventPipeCreated
	EventPipeDeleted
	EventCreatePipeErr
	EventSubscribed
	EventDuplicateSub
	EventSubscribeErr
	EventUnsubscribed
	EventRouteState
	EventSendErr
	EventNoSubscribers
	EventPipeOverflow
	EventMsgLimit
	EventBufferAlloc
	EventBufferInvalid
	EventReceiveErr
)

var eventNames = map[EventID]string{
	EventInit:          "init",
	EventPipeCreated:   "pipe_created",
	EventPipeDeleted:   "pipe_deleted",
	EventCreatePipeErr: "create_pipe_error",
	EventSubscribed:    "subscribed",
	EventDuplicateSub:  "duplicate_subscription",
	EventSubscribeErr:  "subscribe_error",
	EventUnsubscribed:  "unsubscribed",
	EventRouteState:    "route_state",
	EventSendErr:       "send_error",
	EventNoSubscribers: "no_subscribers",
	EventPipeOverflow:  "pipe_overflow",
	EventMsgLimit:      "msg_limit",
	EventBufferAlloc:   "buffer_alloc_error",
	EventBufferInvalid: "buffer_invalid",
	EventReceiveErr:    "receive_error",
}

func (e EventID) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "unknown"
}

// eventFilter rate limits log output per event id so one misbehaving
// stream cannot flood the log.
type eventFilter struct {
	log   *zap.Logger
	limit rate.Limit
	burst int

	mu         sync.Mutex
	limiters   map[EventID]*rate.Limiter
	suppressed map[EventID]uint64
}

func newEventFilter(log *zap.Logger, burst int, interval time.Duration) *eventFilter {
	f := &eventFilter{
		log:        log,
		limit:      rate.Inf,
		burst:      burst,
		limiters:   make(map[EventID]*rate.Limiter),
		suppressed: make(map[EventID]uint64),
	}
	if burst > 0 && interval > 0 {
		f.limit = rate.Every(interval)
	}
	return f
}

// emit logs the event unless its id is over budget. The first event let
// through after suppression carries the number dropped in between.
func (f *eventFilter) emit(ev EventID, level zapcore.Level, text string, fields ...zap.Field) {
	if ce := f.log.Check(level, text); ce != nil {
		dropped, ok := f.allow(ev)
		if !ok {
			return
		}
		fields = append(fields, zap.Stringer("event", ev))
		if dropped > 0 {
			fields = append(fields, zap.Uint64("suppressed", dropped))
		}
		ce.Write(fields...)
	}
}

func (f *eventFilter) allow(ev EventID) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[ev]
	if !ok {
		l = rate.NewLimiter(f.limit, f.burst)
		f.limiters[ev] = l
	}
	if !l.Allow() {
		f.suppressed[ev]++
		return 0, false
	}
	n := f.suppressed[ev]
	delete(f.suppressed, ev)
	return n, true
}

// reset clears every limiter, e.g. after a counter reset command.
func (f *eventFilter) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.limiters)
	clear(f.suppressed)
}
