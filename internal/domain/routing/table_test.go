package routing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

const (
	pipeA handle.ID = 0x00010001
	pipeB handle.ID = 0x00010002
	pipeC handle.ID = 0x00010003
)

func newTable(t *testing.T, ids, dests int) *Table {
	t.Helper()
	tbl, err := New(ids, dests)
	require.NoError(t, err)
	return tbl
}

func TestSubscribeValidation(t *testing.T) {
	tbl := newTable(t, 4, 4)

	tests := []struct {
		name  string
		id    msg.MsgID
		pipe  handle.ID
		limit int
	}{
		{"invalid id", msg.InvalidMsgID, pipeA, 4},
		{"id above highest", msg.DefaultHighestValidMsgID + 1, pipeA, 4},
		{"invalid pipe", 0x0801, handle.Invalid, 4},
		{"zero limit", 0x0801, pipeA, 0},
		{"limit too large", 0x0801, pipeA, MaxMsgLimit + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.Subscribe(tt.id, tt.pipe, types.DefaultQoS, tt.limit, false)
			assert.ErrorIs(t, err, types.ErrBadArgument)
		})
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestSubscribeAndLookup(t *testing.T) {
	tbl := newTable(t, 4, 4)

	created, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 3, false)
	require.NoError(t, err)
	assert.True(t, created)
	_, err = tbl.Subscribe(0x0801, pipeB, types.QoS{Priority: types.PriorityHigh}, 5, true)
	require.NoError(t, err)

	dests := tbl.Lookup(0x0801)
	require.Len(t, dests, 2)
	assert.Equal(t, Destination{Pipe: pipeA, QoS: types.DefaultQoS, MsgLimit: 3, Active: true}, dests[0])
	assert.Equal(t, pipeB, dests[1].Pipe)
	assert.True(t, dests[1].Local)

	assert.Empty(t, tbl.Lookup(0x0802))
}

func TestResubscribeUpdatesInPlace(t *testing.T) {
	tbl := newTable(t, 4, 4)

	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 3, false)
	require.NoError(t, err)
	before := tbl.Lookup(0x0801)

	high := types.QoS{Priority: types.PriorityHigh, Reliability: types.ReliabilityHigh}
	created, err := tbl.Subscribe(0x0801, pipeA, high, 7, false)
	require.NoError(t, err)
	assert.False(t, created)

	after := tbl.Lookup(0x0801)
	require.Len(t, after, 1)
	assert.Equal(t, high, after[0].QoS)
	assert.Equal(t, 7, after[0].MsgLimit)
	assert.Equal(t, 3, before[0].MsgLimit, "earlier snapshot unchanged")
}

func TestCapacityLimits(t *testing.T) {
	tbl := newTable(t, 2, 2)

	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)
	_, err = tbl.Subscribe(0x0801, pipeB, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	_, err = tbl.Subscribe(0x0801, pipeC, types.DefaultQoS, 1, false)
	assert.ErrorIs(t, err, types.ErrMaxDestsMet)
	assert.ErrorIs(t, err, types.ErrResourceExhausted)

	_, err = tbl.Subscribe(0x0802, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)
	_, err = tbl.Subscribe(0x0803, pipeA, types.DefaultQoS, 1, false)
	assert.ErrorIs(t, err, types.ErrMaxMsgIDsMet)
}

func TestEmptyEntryReclaimedWhenFull(t *testing.T) {
	tbl := newTable(t, 1, 2)

	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)
	require.NoError(t, tbl.Unsubscribe(0x0801, pipeA))
	assert.Equal(t, 1, tbl.Len(), "entry persists")

	_, err = tbl.Subscribe(0x0802, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	assert.Empty(t, tbl.Lookup(0x0801))
}

func TestUnsubscribe(t *testing.T) {
	tbl := newTable(t, 4, 4)

	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)
	snapshot := tbl.Lookup(0x0801)

	require.NoError(t, tbl.Unsubscribe(0x0801, pipeA))
	assert.Empty(t, tbl.Lookup(0x0801))
	assert.Len(t, snapshot, 1, "snapshot unaffected")

	assert.ErrorIs(t, tbl.Unsubscribe(0x0801, pipeA), types.ErrNoSubscription)
	assert.ErrorIs(t, tbl.Unsubscribe(0x0900, pipeA), types.ErrNoSubscription)
	assert.ErrorIs(t, tbl.Unsubscribe(msg.InvalidMsgID, pipeA), types.ErrBadArgument)
}

func TestSetActive(t *testing.T) {
	tbl := newTable(t, 4, 4)
	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	require.NoError(t, tbl.SetActive(0x0801, pipeA, false))
	assert.False(t, tbl.Lookup(0x0801)[0].Active)

	_, err = tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 2, false)
	require.NoError(t, err)
	assert.False(t, tbl.Lookup(0x0801)[0].Active, "resubscribe keeps the route disabled")

	require.NoError(t, tbl.SetActive(0x0801, pipeA, true))
	assert.True(t, tbl.Lookup(0x0801)[0].Active)

	assert.ErrorIs(t, tbl.SetActive(0x0801, pipeB, true), types.ErrNoSubscription)
}

func TestRemovePipe(t *testing.T) {
	tbl := newTable(t, 4, 4)
	for _, id := range []msg.MsgID{0x0801, 0x0802, 0x0803} {
		_, err := tbl.Subscribe(id, pipeA, types.DefaultQoS, 1, false)
		require.NoError(t, err)
	}
	_, err := tbl.Subscribe(0x0802, pipeB, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	assert.Equal(t, []msg.MsgID{0x0801, 0x0802, 0x0803}, tbl.Subscriptions(pipeA))
	assert.Equal(t, 3, tbl.RemovePipe(pipeA))
	assert.Empty(t, tbl.Subscriptions(pipeA))

	dests := tbl.Lookup(0x0802)
	require.Len(t, dests, 1)
	assert.Equal(t, pipeB, dests[0].Pipe)
	assert.Equal(t, 0, tbl.RemovePipe(pipeA))
}

func TestNextSequence(t *testing.T) {
	tbl := newTable(t, 4, 4)

	_, ok := tbl.NextSequence(0x0801)
	assert.False(t, ok)

	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	first, ok := tbl.NextSequence(0x0801)
	require.True(t, ok)
	second, _ := tbl.NextSequence(0x0801)
	assert.Equal(t, msg.NextSequenceCount(first), second)

	require.NoError(t, tbl.Unsubscribe(0x0801, pipeA))
	third, ok := tbl.NextSequence(0x0801)
	require.True(t, ok)
	assert.Equal(t, msg.NextSequenceCount(second), third, "continues after unsubscribe")
}

func TestNextSequenceWraps(t *testing.T) {
	tbl := newTable(t, 1, 1)
	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	var last uint16
	for i := 0; i <= int(msg.MaxSequenceCount); i++ {
		last, _ = tbl.NextSequence(0x0801)
	}
	assert.Equal(t, uint16(0), last)
}

func TestLockSendOrdersSequence(t *testing.T) {
	tbl := newTable(t, 1, 1)
	tbl.LockSend(0x0801)()

	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		order []uint16
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				unlock := tbl.LockSend(0x0801)
				seq, _ := tbl.NextSequence(0x0801)
				mu.Lock()
				order = append(order, seq)
				mu.Unlock()
				unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, order, 800)
	for i := 1; i < len(order); i++ {
		assert.Equal(t, msg.NextSequenceCount(order[i-1]), order[i])
	}
}

func TestSnapshotAndMap(t *testing.T) {
	tbl := newTable(t, 4, 4)
	_, err := tbl.Subscribe(0x0802, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)
	_, err = tbl.Subscribe(0x0801, pipeB, types.DefaultQoS, 2, false)
	require.NoError(t, err)
	_, err = tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 3, false)
	require.NoError(t, err)
	tbl.NextSequence(0x0802)

	routes := tbl.Snapshot()
	require.Len(t, routes, 3)
	assert.Equal(t, msg.MsgID(0x0801), routes[0].MsgID)
	assert.Equal(t, pipeB, routes[0].Pipe)
	assert.Equal(t, pipeA, routes[1].Pipe)
	assert.Equal(t, msg.MsgID(0x0802), routes[2].MsgID)

	m := tbl.Map()
	require.Len(t, m, 2)
	assert.Equal(t, MapEntry{MsgID: 0x0801, Destinations: 2}, m[0])
	assert.Equal(t, MapEntry{MsgID: 0x0802, Destinations: 1, Sequence: 1}, m[1])
}

func TestConcurrentLookupDuringChurn(t *testing.T) {
	tbl := newTable(t, 8, 8)
	_, err := tbl.Subscribe(0x0801, pipeA, types.DefaultQoS, 1, false)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, d := range tbl.Lookup(0x0801) {
					assert.NotEqual(t, handle.Invalid, d.Pipe)
				}
				tbl.NextSequence(0x0801)
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		_, err := tbl.Subscribe(0x0801, pipeB, types.DefaultQoS, 1+i%4, false)
		require.NoError(t, err)
		require.NoError(t, tbl.Unsubscribe(0x0801, pipeB))
	}
	close(stop)
	wg.Wait()

	assert.Len(t, tbl.Lookup(0x0801), 1)
}
