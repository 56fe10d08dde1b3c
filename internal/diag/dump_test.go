package diag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

type fakeSource struct{}

func (fakeSource) Stats() types.BusStats {
	return types.BusStats{
		BusID:      "bus_test",
		Counters:   types.Counters{MsgsSent: 7, PipeOverflowErrors: 1},
		Pool:       types.PoolStats{Capacity: 4, InUse: 1},
		PipesInUse: 1,
		MaxPipes:   8,
	}
}

func (fakeSource) PipeInfo() []types.PipeInfo {
	return []types.PipeInfo{{ID: "1:1", Name: "CMD_PIPE", Owner: "SAMPLE_APP", Subscriptions: 2,
		Stats: types.PipeStats{Depth: 4, Current: 1, Sent: 3}}}
}

func (fakeSource) RoutingInfo() []types.RouteInfo {
	return []types.RouteInfo{{MsgID: 0x1882, PipeID: "1:1", PipeName: "CMD_PIPE", QoS: types.DefaultQoS, MsgLimit: 4, Active: true}}
}

func (fakeSource) MapInfo() []types.MapInfo {
	return []types.MapInfo{{MsgID: 0x1882, Destinations: 1}, {MsgID: 0x0882, Destinations: 0, Sequence: 12}}
}

func TestParse(t *testing.T) {
	k, err := ParseKind("Routes")
	require.NoError(t, err)
	assert.Equal(t, KindRoutes, k)
	_, err = ParseKind("everything")
	assert.ErrorIs(t, err, types.ErrBadArgument)

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, types.ErrBadArgument)

	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressZstd, c)
	_, err = ParseCompression("lz4")
	assert.ErrorIs(t, err, types.ErrBadArgument)
}

func TestCollect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d, err := Collect(fakeSource{}, KindMap, now)
	require.NoError(t, err)
	assert.Equal(t, "bus_test", d.BusID)
	assert.Len(t, d.Map, 2)
	assert.Nil(t, d.Pipes)
	assert.Nil(t, d.Stats)

	d, err = Collect(fakeSource{}, KindStats, now)
	require.NoError(t, err)
	require.NotNil(t, d.Stats)
	assert.Equal(t, uint64(7), d.Stats.Counters.MsgsSent)

	_, err = Collect(fakeSource{}, Kind("bogus"), now)
	assert.ErrorIs(t, err, types.ErrBadArgument)
}

func TestEncodeDecode(t *testing.T) {
	d, err := Collect(fakeSource{}, KindRoutes, time.Now())
	require.NoError(t, err)

	for _, f := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Encode(d, f)
			require.NoError(t, err)
			assert.Contains(t, string(data), "CMD_PIPE")

			got, err := Decode(data, f)
			require.NoError(t, err)
			assert.Equal(t, d.Kind, got.Kind)
			assert.Equal(t, d.Routes, got.Routes)
		})
	}
}

func TestWriterCompression(t *testing.T) {
	for _, c := range []Compression{CompressNone, CompressGzip, CompressZstd} {
		t.Run(string(c), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "dumps")
			w := NewWriter(dir, c, nil)

			path, err := w.Write(fakeSource{}, KindPipes, FormatYAML)
			require.NoError(t, err)
			assert.Equal(t, dir, filepath.Dir(path))
			assert.True(t, strings.HasPrefix(filepath.Base(path), "pipes-"))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			switch c {
			case CompressGzip:
				assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])
			case CompressZstd:
				assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])
			default:
				assert.Contains(t, string(raw), "CMD_PIPE")
			}

			d, err := ReadFile(path)
			require.NoError(t, err)
			require.Len(t, d.Pipes, 1)
			assert.Equal(t, "SAMPLE_APP", d.Pipes[0].Owner)
			assert.Equal(t, 3, int(d.Pipes[0].Stats.Sent))
		})
	}
}

func TestReadFileUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, types.ErrBadArgument)
}
