package sb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

const (
	hkCounterFields = 13
	hkUsageFields   = 5

	// HousekeepingSize is the size of a housekeeping telemetry packet.
	HousekeepingSize = msg.TelemetryHeaderSize + 4*(hkCounterFields+hkUsageFields)
)

// Housekeeping is the decoded housekeeping telemetry payload. Counters
// travel as 32 bits and wrap.
type Housekeeping struct {
	Time             msg.Time       `json:"time" yaml:"time"`
	Counters         types.Counters `json:"counters" yaml:"counters"`
	BuffersInUse     int            `json:"buffers_in_use" yaml:"buffers_in_use"`
	PeakBuffersInUse int            `json:"peak_buffers_in_use" yaml:"peak_buffers_in_use"`
	BufferCapacity   int            `json:"buffer_capacity" yaml:"buffer_capacity"`
	PipesInUse       int            `json:"pipes_in_use" yaml:"pipes_in_use"`
	MsgIDsInUse      int            `json:"msg_ids_in_use" yaml:"msg_ids_in_use"`
}

func counterFields(c *types.Counters) [hkCounterFields]*uint64 {
	return [hkCounterFields]*uint64{
		&c.MsgsSent, &c.MsgsDelivered, &c.NoSubscribers, &c.MsgSendErrors,
		&c.MsgReceiveErrors, &c.ReceiveTimeouts, &c.CreatePipeErrors,
		&c.SubscribeErrors, &c.PipeOverflowErrors, &c.MsgLimitErrors,
		&c.BufferInvalidErrors, &c.BufferAllocErrors, &c.DuplicateSubscription,
	}
}

func (h *Housekeeping) usageFields() [hkUsageFields]*int {
	return [hkUsageFields]*int{
		&h.BuffersInUse, &h.PeakBuffersInUse, &h.BufferCapacity, &h.PipesInUse, &h.MsgIDsInUse,
	}
}

// BuildHousekeeping encodes the current bus state as a telemetry packet on
// the housekeeping message id.
func (b *Bus) BuildHousekeeping() ([]byte, error) {
	st := b.Stats()
	hk := Housekeeping{
		Counters:         st.Counters,
		BuffersInUse:     st.Pool.InUse,
		PeakBuffersInUse: st.Pool.PeakInUse,
		BufferCapacity:   st.Pool.Capacity,
		PipesInUse:       st.PipesInUse,
		MsgIDsInUse:      st.MsgIDsInUse,
	}

	pkt := make([]byte, HousekeepingSize)
	if err := msg.Init(pkt, b.cfg.HousekeepingMsgID, HousekeepingSize); err != nil {
		return nil, err
	}
	if err := b.TimeStampMsg(pkt); err != nil {
		return nil, fmt.Errorf("housekeeping msg id %s: %w", b.cfg.HousekeepingMsgID, err)
	}

	off := msg.TelemetryHeaderSize
	for _, f := range counterFields(&hk.Counters) {
		binary.BigEndian.PutUint32(pkt[off:], uint32(*f))
		off += 4
	}
	for _, f := range hk.usageFields() {
		binary.BigEndian.PutUint32(pkt[off:], uint32(*f))
		off += 4
	}
	return pkt, nil
}

// DecodeHousekeeping parses a packet built by BuildHousekeeping.
func DecodeHousekeeping(m []byte) (Housekeeping, error) {
	if len(m) < HousekeepingSize {
		return Housekeeping{}, fmt.Errorf("housekeeping packet of %d bytes: %w", len(m), types.ErrBadArgument)
	}
	t, err := msg.MsgTime(m)
	if err != nil {
		return Housekeeping{}, err
	}

	hk := Housekeeping{Time: t}
	off := msg.TelemetryHeaderSize
	for _, f := range counterFields(&hk.Counters) {
		*f = uint64(binary.BigEndian.Uint32(m[off:]))
		off += 4
	}
	for _, f := range hk.usageFields() {
		*f = int(binary.BigEndian.Uint32(m[off:]))
		off += 4
	}
	return hk, nil
}

// SendHousekeeping publishes one housekeeping packet and refreshes the
// usage gauges.
func (b *Bus) SendHousekeeping() error {
	pkt, err := b.BuildHousekeeping()
	if err != nil {
		return err
	}
	if err := b.TransmitMsg(pkt, true); err != nil {
		return fmt.Errorf("send housekeeping: %w", err)
	}
	b.refreshGauges()
	return nil
}

// RunHousekeeping sends housekeeping every period until ctx is done.
func (b *Bus) RunHousekeeping(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.SendHousekeeping(); err != nil {
				b.log.Warn("housekeeping not sent", zap.Error(err))
			}
		}
	}
}

func (b *Bus) refreshGauges() {
	if b.mx == nil {
		return
	}
	ps := b.pool.Stats()
	b.mx.SetBuffers(ps.InUse, ps.PeakInUse)
	b.mx.SetPipesActive(b.pipes.Len())
	b.mx.SetRoutesActive(b.routes.Len())
}
