package pipe

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

const testPipeID handle.ID = 0x00010001

func newPipe(t *testing.T, depth int) *Pipe {
	t.Helper()
	p, err := New(testPipeID, "TestPipe", depth, "test")
	require.NoError(t, err)
	return p
}

func item(id msg.MsgID) Item { return Item{MsgID: id} }

func TestNewValidation(t *testing.T) {
	_, err := New(testPipeID, "ok", 0, "")
	assert.ErrorIs(t, err, types.ErrBadArgument)

	for _, name := range []string{"", "has space", "slash/name", strings.Repeat("x", MaxNameLen+1)} {
		_, err := New(testPipeID, name, 1, "")
		assert.ErrorIs(t, err, types.ErrBadArgument, name)
	}

	p, err := New(testPipeID, "SB.cmd-pipe_1", 3, "SAMPLE_APP")
	require.NoError(t, err)
	assert.Equal(t, "SB.cmd-pipe_1", p.Name())
	assert.Equal(t, "SAMPLE_APP", p.Owner())
	assert.Equal(t, 3, p.Depth())
}

func TestFIFO(t *testing.T) {
	p := newPipe(t, 4)
	ids := []msg.MsgID{0x0801, 0x1801, 0x0801, 0x0802}
	for _, id := range ids {
		require.NoError(t, p.Enqueue(item(id), 4))
	}
	for _, want := range ids {
		got, err := p.Dequeue(Poll)
		require.NoError(t, err)
		assert.Equal(t, want, got.MsgID)
	}
}

func TestDepthLimit(t *testing.T) {
	p := newPipe(t, 2)
	require.NoError(t, p.Enqueue(item(0x0801), 10))
	require.NoError(t, p.Enqueue(item(0x0802), 10))

	err := p.Enqueue(item(0x0803), 10)
	assert.ErrorIs(t, err, types.ErrPipeFull)
	assert.ErrorIs(t, err, types.ErrResourceExhausted)

	st := p.Stats()
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 2, st.Peak)
	assert.Equal(t, uint64(1), st.OverflowDrops)
}

func TestMsgLimit(t *testing.T) {
	p := newPipe(t, 5)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue(item(0x0801), 3))
	}
	assert.ErrorIs(t, p.Enqueue(item(0x0801), 3), types.ErrMsgLimit)
	assert.NoError(t, p.Enqueue(item(0x0802), 3), "other ids unaffected")
	assert.Equal(t, 3, p.InFlight(0x0801))

	_, err := p.Dequeue(Poll)
	require.NoError(t, err)
	assert.Equal(t, 2, p.InFlight(0x0801))
	assert.NoError(t, p.Enqueue(item(0x0801), 3), "room after a receive")
	assert.Equal(t, uint64(1), p.Stats().LimitDrops)
}

func TestPollEmpty(t *testing.T) {
	p := newPipe(t, 1)

	start := time.Now()
	_, err := p.Dequeue(Poll)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestTimedReceive(t *testing.T) {
	p := newPipe(t, 1)

	start := time.Now()
	_, err := p.Dequeue(50)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = p.Enqueue(item(0x0801), 1)
	}()
	got, err := p.Dequeue(1000)
	require.NoError(t, err)
	assert.Equal(t, msg.MsgID(0x0801), got.MsgID)
}

func TestBadTimeout(t *testing.T) {
	p := newPipe(t, 1)
	for _, to := range []Timeout{-2, -100} {
		_, err := p.Dequeue(to)
		assert.ErrorIs(t, err, types.ErrBadArgument)
	}
}

func TestCloseWakesPendForever(t *testing.T) {
	p := newPipe(t, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := p.Dequeue(PendForever)
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, types.ErrPipeClosed)
	case <-time.After(time.Second):
		t.Fatal("receiver not woken by close")
	}
}

func TestCloseDrains(t *testing.T) {
	p := newPipe(t, 3)
	require.NoError(t, p.Enqueue(item(0x0801), 3))
	require.NoError(t, p.Enqueue(item(0x0802), 3))

	drained := p.Close()
	assert.Len(t, drained, 2)
	assert.True(t, p.Closed())
	assert.Nil(t, p.Close(), "second close is a no-op")

	assert.ErrorIs(t, p.Enqueue(item(0x0801), 3), types.ErrPipeClosed)
	_, err := p.Dequeue(Poll)
	assert.ErrorIs(t, err, types.ErrPipeClosed)
}

func TestResetStats(t *testing.T) {
	p := newPipe(t, 2)
	require.NoError(t, p.Enqueue(item(0x0801), 1))
	_ = p.Enqueue(item(0x0801), 1)

	p.ResetStats()
	st := p.Stats()
	assert.Zero(t, st.Sent)
	assert.Zero(t, st.LimitDrops)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 1, st.Peak)
}

func TestManyProducersOneConsumer(t *testing.T) {
	const producers, perProducer = 4, 200
	p := newPipe(t, producers*perProducer)

	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, p.Enqueue(item(msg.MsgID(g)), perProducer))
			}
		}(g)
	}
	wg.Wait()

	counts := map[msg.MsgID]int{}
	for {
		it, err := p.Dequeue(Poll)
		if err != nil {
			assert.ErrorIs(t, err, types.ErrTimeout)
			break
		}
		counts[it.MsgID]++
	}
	for g := 0; g < producers; g++ {
		assert.Equal(t, perProducer, counts[msg.MsgID(g)])
	}
	assert.Equal(t, uint64(producers*perProducer), p.Stats().Received)
}
