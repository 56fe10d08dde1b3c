package sb

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/domain/routing"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// TransmitMsg copies m into a pool buffer and delivers it to every
// subscriber of its message id. When incrementSequence is set and m is
// telemetry, the delivered copy carries the id's next sequence count;
// commands keep the caller's count. m itself is never modified.
//
// A destination that is full or at its message limit misses this message;
// that is counted but not reported. Only validation failures and pool
// exhaustion return an error, and in both cases nothing is delivered.
func (b *Bus) TransmitMsg(m []byte, incrementSequence bool) error {
	timer := monitoring.NewTimer(b.mx, "transmit_msg")
	defer timer.Stop()

	if err := b.checkOpen(); err != nil {
		return err
	}
	id, size, err := b.validate(m)
	if err != nil {
		return b.sendFailed(id, err)
	}

	var sendErr error
	b.sequenced(id, incrementSequence, func() {
		sendErr = b.transmitCopy(m, id, size, incrementSequence)
	})
	return sendErr
}

func (b *Bus) transmitCopy(m []byte, id msg.MsgID, size int, incrementSequence bool) error {
	dests := b.routes.Lookup(id)
	if len(dests) == 0 {
		// The sequence still advances while an id's entry outlives its
		// subscribers, so a later subscriber sees the gap.
		b.stamp(nil, id, incrementSequence)
		b.noSubscribers(id)
		return nil
	}

	buf, err := b.pool.Allocate(size)
	if err != nil {
		b.counters.bufferAlloc.Add(1)
		b.events.emit(EventBufferAlloc, zapcore.ErrorLevel, "no buffer for transmit",
			zap.Stringer("msg_id", id), zap.Int("size", size), zap.Error(err))
		return b.sendFailed(id, err)
	}
	data := buf.Bytes()
	copy(data, m[:size])
	b.stamp(data, id, incrementSequence)

	b.deliver(buf, id, dests, "copy")
	b.releaseOwner(buf)
	return nil
}

// TransmitBuffer delivers a pool buffer without copying it. On success
// the caller's reference is consumed and must not be used again. On error
// the caller still owns buf.
func (b *Bus) TransmitBuffer(buf bufpool.Buffer, incrementSequence bool) error {
	timer := monitoring.NewTimer(b.mx, "transmit_buffer")
	defer timer.Stop()

	if err := b.checkOpen(); err != nil {
		return err
	}
	if buf.IsZero() {
		return b.sendFailed(msg.InvalidMsgID, fmt.Errorf("transmit zero buffer: %w", types.ErrBadArgument))
	}
	data, err := b.pool.Bytes(buf)
	if err != nil {
		b.counters.bufferInvalid.Add(1)
		b.events.emit(EventBufferInvalid, zapcore.ErrorLevel, "transmit of invalid buffer",
			zap.Stringer("buffer", buf), zap.Error(err))
		return b.sendFailed(msg.InvalidMsgID, err)
	}
	id, size, err := b.validate(data)
	if err != nil {
		return b.sendFailed(id, err)
	}

	owner, err := b.takeOwnership(buf, size)
	if err != nil {
		return b.sendFailed(id, err)
	}
	b.sequenced(id, incrementSequence, func() {
		b.stamp(owner.Bytes(), id, incrementSequence)
		dests := b.routes.Lookup(id)
		if len(dests) == 0 {
			b.noSubscribers(id)
		} else {
			b.deliver(owner, id, dests, "zero_copy")
		}
	})
	b.releaseOwner(owner)
	return nil
}

// sequenced runs send under id's send lock when it takes a sequence count,
// so concurrent publishers of one id enqueue in count order.
func (b *Bus) sequenced(id msg.MsgID, incrementSequence bool, send func()) {
	if !incrementSequence || id.IsCommand() {
		send()
		return
	}
	unlock := b.routes.LockSend(id)
	defer unlock()
	send()
}

// takeOwnership turns the caller's reference into the transmit's own. A
// buffer that other holders still reference, such as one just received
// from a pipe that also delivered it elsewhere, is copied first so the
// stamp below cannot change what they see.
func (b *Bus) takeOwnership(buf bufpool.Buffer, size int) (bufpool.Buffer, error) {
	refs, err := b.pool.Refs(buf)
	if err != nil {
		return bufpool.Buffer{}, err
	}
	if refs == 1 {
		return b.pool.Transfer(buf)
	}

	cp, err := b.pool.Allocate(size)
	if err != nil {
		b.counters.bufferAlloc.Add(1)
		return bufpool.Buffer{}, err
	}
	src, err := b.pool.Bytes(buf)
	if err != nil {
		b.releaseOwner(cp)
		return bufpool.Buffer{}, err
	}
	copy(cp.Bytes(), src[:size])
	if err := b.pool.Release(buf); err != nil {
		b.releaseOwner(cp)
		return bufpool.Buffer{}, err
	}
	return cp, nil
}

// validate checks a message header against the bus limits. The id is
// checked before the size.
func (b *Bus) validate(m []byte) (msg.MsgID, int, error) {
	if len(m) < msg.PrimaryHeaderSize {
		return msg.InvalidMsgID, 0, fmt.Errorf("message of %d bytes: %w", len(m), types.ErrBadArgument)
	}
	id := msg.GetMsgID(m)
	if !b.routes.ValidMsgID(id) {
		return id, 0, fmt.Errorf("msg id %s: %w", id, types.ErrBadArgument)
	}
	size, err := msg.Size(m)
	if err != nil {
		return id, 0, err
	}
	if size > b.cfg.MaxMsgSize {
		return id, size, fmt.Errorf("msg id %s size %d, max %d: %w", id, size, b.cfg.MaxMsgSize, types.ErrMsgTooBig)
	}
	if size > len(m) {
		return id, size, fmt.Errorf("msg id %s claims %d bytes, has %d: %w", id, size, len(m), types.ErrBadArgument)
	}
	hdr, err := msg.HeaderSize(m)
	if err != nil {
		return id, size, err
	}
	if hdr > size {
		return id, size, fmt.Errorf("msg id %s size %d below %d byte header: %w", id, size, hdr, types.ErrBadArgument)
	}
	return id, size, nil
}

func (b *Bus) stamp(data []byte, id msg.MsgID, incrementSequence bool) {
	if !incrementSequence || id.IsCommand() {
		return
	}
	if seq, ok := b.routes.NextSequence(id); ok && data != nil {
		// Cannot fail: validate saw a full primary header.
		_ = msg.SetSequenceCount(data, seq)
	}
}

// deliver enqueues one reference to owner on every active destination.
// Each destination succeeds or fails on its own.
func (b *Bus) deliver(owner bufpool.Buffer, id msg.MsgID, dests []routing.Destination, path string) {
	delivered := 0
	for _, d := range dests {
		if !d.Active {
			continue
		}
		p, ok := b.pipes.Lookup(d.Pipe)
		if !ok {
			// Pipe deleted after the lookup snapshot was taken.
			b.drop(id, nil, types.ErrPipeClosed)
			continue
		}
		ref, err := b.pool.Share(owner)
		if err != nil {
			b.drop(id, p, err)
			continue
		}
		if err := p.Enqueue(pipe.Item{Buf: ref, MsgID: id}, d.MsgLimit); err != nil {
			b.releaseOwner(ref)
			b.drop(id, p, err)
			continue
		}
		delivered++
	}

	b.counters.msgsSent.Add(1)
	b.counters.msgsDelivered.Add(uint64(delivered))
	if b.mx != nil {
		typ := msg.TypeTelemetry
		if id.IsCommand() {
			typ = msg.TypeCommand
		}
		b.mx.RecordSend(typ.String(), path)
		b.mx.RecordDelivered(delivered)
	}
}

func (b *Bus) drop(id msg.MsgID, p *pipe.Pipe, err error) {
	pipeName := "deleted"
	if p != nil {
		pipeName = p.Name()
	}
	fields := []zap.Field{zap.Stringer("msg_id", id), zap.String("pipe", pipeName)}

	switch {
	case errors.Is(err, types.ErrMsgLimit):
		b.counters.msgLimit.Add(1)
		b.recordDrop(monitoring.DropMsgLimit)
		b.events.emit(EventMsgLimit, zapcore.WarnLevel, "msg limit reached, message dropped", fields...)
	case errors.Is(err, types.ErrPipeFull):
		b.counters.pipeOverflow.Add(1)
		b.recordDrop(monitoring.DropPipeFull)
		b.events.emit(EventPipeOverflow, zapcore.WarnLevel, "pipe overflow, message dropped", fields...)
	case errors.Is(err, types.ErrPipeClosed):
		b.recordDrop(monitoring.DropClosed)
	default:
		b.counters.bufferAlloc.Add(1)
		b.recordDrop(monitoring.DropNoBuffer)
		b.events.emit(EventBufferAlloc, zapcore.ErrorLevel, "no buffer reference for destination",
			append(fields, zap.Error(err))...)
	}
}

func (b *Bus) noSubscribers(id msg.MsgID) {
	b.counters.msgsSent.Add(1)
	b.counters.noSubscribers.Add(1)
	if b.mx != nil {
		b.mx.RecordNoSubscribers()
	}
	b.events.emit(EventNoSubscribers, zapcore.InfoLevel, "no subscribers", zap.Stringer("msg_id", id))
}

func (b *Bus) sendFailed(id msg.MsgID, err error) error {
	b.counters.sendErrors.Add(1)
	b.recordError("transmit", err)
	b.events.emit(EventSendErr, zapcore.ErrorLevel, "transmit rejected",
		zap.Stringer("msg_id", id), zap.Error(err))
	return err
}

// releaseOwner drops a reference the bus itself holds. Failure means bus
// bookkeeping is broken, so it is logged rather than returned.
func (b *Bus) releaseOwner(buf bufpool.Buffer) {
	if err := b.pool.Release(buf); err != nil {
		b.log.Error("release of bus-held buffer failed", zap.Stringer("buffer", buf), zap.Error(err))
	}
}

// AllocateMessageBuffer reserves a pool buffer for zero-copy transmit.
func (b *Bus) AllocateMessageBuffer(size int) (bufpool.Buffer, error) {
	buf, err := b.pool.Allocate(size)
	if err != nil {
		if errors.Is(err, types.ErrResourceExhausted) {
			b.counters.bufferAlloc.Add(1)
			b.events.emit(EventBufferAlloc, zapcore.ErrorLevel, "buffer pool exhausted", zap.Int("size", size))
		}
		b.recordError("allocate", err)
		return bufpool.Buffer{}, err
	}
	return buf, nil
}

// ReleaseMessageBuffer returns a buffer the caller owns, whether allocated
// or received.
func (b *Bus) ReleaseMessageBuffer(buf bufpool.Buffer) error {
	if err := b.pool.Release(buf); err != nil {
		if errors.Is(err, types.ErrBufferInvalid) {
			b.counters.bufferInvalid.Add(1)
			b.events.emit(EventBufferInvalid, zapcore.ErrorLevel, "release of invalid buffer",
				zap.Stringer("buffer", buf), zap.Error(err))
		}
		b.recordError("release", err)
		return err
	}
	return nil
}

func (b *Bus) recordError(op string, err error) {
	if b.mx != nil {
		b.mx.RecordError(op, Category(err))
	}
}

func (b *Bus) recordDrop(reason string) {
	if b.mx != nil {
		b.mx.RecordDrop(reason)
	}
}
