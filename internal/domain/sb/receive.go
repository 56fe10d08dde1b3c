package sb

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// ReceiveBuffer takes the oldest message from a pipe. timeout is Poll,
// PendForever or a positive number of milliseconds. The returned buffer
// belongs to the caller, who hands it back with ReleaseMessageBuffer or
// forwards it with TransmitBuffer.
func (b *Bus) ReceiveBuffer(pid handle.ID, timeout pipe.Timeout) (bufpool.Buffer, error) {
	if timeout < pipe.PendForever {
		err := fmt.Errorf("receive timeout %d: %w", timeout, types.ErrBadArgument)
		return bufpool.Buffer{}, b.receiveFailed(pid, err)
	}
	p, err := b.lookupPipe(pid)
	if err != nil {
		return bufpool.Buffer{}, b.receiveFailed(pid, err)
	}

	item, err := p.Dequeue(timeout)
	if err != nil {
		if errors.Is(err, types.ErrTimeout) {
			b.counters.receiveTimeouts.Add(1)
			if b.mx != nil {
				b.mx.RecordReceiveTimeout()
			}
			return bufpool.Buffer{}, err
		}
		return bufpool.Buffer{}, b.receiveFailed(pid, err)
	}
	return item.Buf, nil
}

// ReceiveMsg receives like ReceiveBuffer and copies the message into dst,
// releasing the pool buffer. It returns the number of bytes copied; a
// message longer than dst is truncated.
func (b *Bus) ReceiveMsg(pid handle.ID, timeout pipe.Timeout, dst []byte) (int, error) {
	buf, err := b.ReceiveBuffer(pid, timeout)
	if err != nil {
		return 0, err
	}
	n := copy(dst, buf.Bytes())
	b.releaseOwner(buf)
	return n, nil
}

func (b *Bus) receiveFailed(pid handle.ID, err error) error {
	b.counters.receiveErrors.Add(1)
	b.recordError("receive", err)
	b.events.emit(EventReceiveErr, zapcore.ErrorLevel, "receive failed",
		zap.Stringer("pipe", pid), zap.Error(err))
	return err
}
