package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

func TestBuildCommandPacket(t *testing.T) {
	pkt, err := BuildPacket(0x1882, 3, []byte{0xDE, 0xAD})
	require.NoError(t, err)
	assert.Len(t, pkt, msg.CommandHeaderSize+2)

	p, err := DescribePacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, "0x1882", p.MsgID)
	assert.Equal(t, "cmd", p.Type)
	assert.Equal(t, "dead", p.Payload)
	require.NotNil(t, p.FcnCode)
	assert.Equal(t, uint8(3), *p.FcnCode)
	require.NotNil(t, p.Checksum)
	assert.True(t, *p.Checksum)
	assert.Nil(t, p.Time)
}

func TestBuildTelemetryPacket(t *testing.T) {
	pkt, err := BuildPacket(0x0882, 0, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, msg.SetMsgTime(pkt, msg.Time{Seconds: 42}))

	p, err := DescribePacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, "tlm", p.Type)
	assert.Equal(t, msg.TelemetryHeaderSize+4, p.Size)
	require.NotNil(t, p.Time)
	assert.Equal(t, uint32(42), p.Time.Seconds)
	assert.Nil(t, p.FcnCode)
}

func TestBuildPrimaryOnlyPacket(t *testing.T) {
	pkt, err := BuildPacket(0x0001, 0, nil)
	require.NoError(t, err)
	size, err := msg.Size(pkt)
	require.NoError(t, err)
	assert.Equal(t, msg.PrimaryHeaderSize+1, size)
}

func TestBuildPacketRejects(t *testing.T) {
	_, err := BuildPacket(0x10000, 0, nil)
	assert.ErrorIs(t, err, types.ErrBadArgument)

	_, err = BuildPacket(0x1882, msg.MaxFcnCode+1, nil)
	assert.ErrorIs(t, err, types.ErrBadArgument)
}

func TestDescribeTruncated(t *testing.T) {
	pkt, err := BuildPacket(0x0882, 0, make([]byte, 8))
	require.NoError(t, err)

	_, err = DescribePacket(pkt[:10])
	assert.ErrorIs(t, err, types.ErrBadArgument)
	_, err = DescribePacket(pkt[:3])
	assert.ErrorIs(t, err, types.ErrBadArgument)
}
