package sb

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Subscribe routes id to pipe with the default QoS and message limit.
func (b *Bus) Subscribe(id msg.MsgID, pid handle.ID) error {
	return b.subscribe(id, pid, types.DefaultQoS, b.cfg.DefaultMsgLimit, false)
}

// SubscribeEx routes id to pipe with an explicit QoS and message limit.
func (b *Bus) SubscribeEx(id msg.MsgID, pid handle.ID, qos types.QoS, msgLimit int) error {
	return b.subscribe(id, pid, qos, msgLimit, false)
}

// SubscribeLocal routes id to pipe and marks the route as local to this
// processor. The flag is recorded for diagnostics.
func (b *Bus) SubscribeLocal(id msg.MsgID, pid handle.ID, msgLimit int) error {
	return b.subscribe(id, pid, types.DefaultQoS, msgLimit, true)
}

func (b *Bus) subscribe(id msg.MsgID, pid handle.ID, qos types.QoS, msgLimit int, local bool) error {
	created, err := b.addRoute(id, pid, qos, msgLimit, local)
	if err != nil {
		b.counters.subscribeErrors.Add(1)
		b.recordError("subscribe", err)
		b.events.emit(EventSubscribeErr, zapcore.ErrorLevel, "subscribe failed",
			zap.Stringer("msg_id", id), zap.Stringer("pipe", pid), zap.Error(err))
		return err
	}
	if !created {
		b.counters.duplicateSubs.Add(1)
		b.events.emit(EventDuplicateSub, zapcore.InfoLevel, "duplicate subscription updated",
			zap.Stringer("msg_id", id), zap.Stringer("pipe", pid), zap.Int("msg_limit", msgLimit))
		return nil
	}
	if b.mx != nil {
		b.mx.SetRoutesActive(b.routes.Len())
	}
	b.events.emit(EventSubscribed, zapcore.DebugLevel, "subscribed",
		zap.Stringer("msg_id", id), zap.Stringer("pipe", pid),
		zap.Stringer("qos", qos), zap.Int("msg_limit", msgLimit), zap.Bool("local", local))
	return nil
}

func (b *Bus) addRoute(id msg.MsgID, pid handle.ID, qos types.QoS, msgLimit int, local bool) (bool, error) {
	b.pipeMu.RLock()
	defer b.pipeMu.RUnlock()

	if !b.pipes.Validate(pid) {
		return false, fmt.Errorf("subscribe msg id %s to pipe %s: %w", id, pid, types.ErrBadArgument)
	}
	return b.routes.Subscribe(id, pid, qos, msgLimit, local)
}

// Unsubscribe removes the route from id to pipe. Messages already queued
// stay queued.
func (b *Bus) Unsubscribe(id msg.MsgID, pid handle.ID) error {
	b.pipeMu.RLock()
	err := b.unsubscribeLocked(id, pid)
	b.pipeMu.RUnlock()
	if err != nil {
		b.recordError("unsubscribe", err)
		return err
	}
	b.events.emit(EventUnsubscribed, zapcore.DebugLevel, "unsubscribed",
		zap.Stringer("msg_id", id), zap.Stringer("pipe", pid))
	return nil
}

func (b *Bus) unsubscribeLocked(id msg.MsgID, pid handle.ID) error {
	if !b.pipes.Validate(pid) {
		return fmt.Errorf("unsubscribe msg id %s from pipe %s: %w", id, pid, types.ErrBadArgument)
	}
	return b.routes.Unsubscribe(id, pid)
}

// EnableRoute resumes delivery of id to pipe.
func (b *Bus) EnableRoute(id msg.MsgID, pid handle.ID) error {
	return b.setRoute(id, pid, true)
}

// DisableRoute suspends delivery of id to pipe without unsubscribing.
// Skipped deliveries are not counted as drops.
func (b *Bus) DisableRoute(id msg.MsgID, pid handle.ID) error {
	return b.setRoute(id, pid, false)
}

func (b *Bus) setRoute(id msg.MsgID, pid handle.ID, active bool) error {
	if !b.routes.ValidMsgID(id) {
		return fmt.Errorf("route msg id %s: %w", id, types.ErrBadArgument)
	}
	b.pipeMu.RLock()
	err := b.setRouteLocked(id, pid, active)
	b.pipeMu.RUnlock()
	if err != nil {
		b.recordError("route", err)
		return err
	}
	b.events.emit(EventRouteState, zapcore.InfoLevel, "route state changed",
		zap.Stringer("msg_id", id), zap.Stringer("pipe", pid), zap.Bool("active", active))
	return nil
}

func (b *Bus) setRouteLocked(id msg.MsgID, pid handle.ID, active bool) error {
	if !b.pipes.Validate(pid) {
		return fmt.Errorf("route msg id %s pipe %s: %w", id, pid, types.ErrBadArgument)
	}
	return b.routes.SetActive(id, pid, active)
}
