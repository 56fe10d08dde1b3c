package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

const (
	testTlmID MsgID = 0x0801
	testCmdID MsgID = 0x1801
)

func TestInitTelemetry(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xAA
	}
	require.NoError(t, Init(buf, testTlmID, 20))

	assert.Equal(t, testTlmID, GetMsgID(buf))
	size, err := Size(buf)
	require.NoError(t, err)
	assert.Equal(t, 20, size)

	typ, err := GetType(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeTelemetry, typ)

	h, err := HeaderSize(buf)
	require.NoError(t, err)
	assert.Equal(t, TelemetryHeaderSize, h)

	seq, err := SequenceCount(buf)
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.Equal(t, byte(0xC0), buf[2], "sequence flags")

	assert.Equal(t, make([]byte, 14), buf[6:20], "body zeroed")
	assert.Equal(t, byte(0xAA), buf[20], "bytes past size untouched")
}

func TestInitRejects(t *testing.T) {
	buf := make([]byte, 8)
	assert.ErrorIs(t, Init(buf, testTlmID, 4), types.ErrBadArgument)
	assert.ErrorIs(t, Init(buf, testTlmID, 9), types.ErrBadArgument)
	assert.ErrorIs(t, Init(buf, 0x10000, 8), types.ErrBadArgument)
}

func TestHeaderSize(t *testing.T) {
	tests := []struct {
		name string
		id   MsgID
		want int
	}{
		{"primary only", 0x0001, PrimaryHeaderSize},
		{"command", testCmdID, CommandHeaderSize},
		{"telemetry", testTlmID, TelemetryHeaderSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 16)
			require.NoError(t, Init(buf, tt.id, 16))
			h, err := HeaderSize(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
			assert.Equal(t, tt.want, HeaderSizeFor(tt.id))
		})
	}
}

func TestShortMessage(t *testing.T) {
	short := []byte{0x08, 0x01, 0xC0}

	assert.Equal(t, InvalidMsgID, GetMsgID(short))
	assert.Equal(t, InvalidMsgID, GetMsgID(nil))

	_, err := Size(short)
	assert.ErrorIs(t, err, types.ErrBadArgument)
	_, err = HeaderSize(short)
	assert.ErrorIs(t, err, types.ErrBadArgument)
	_, err = SequenceCount(short)
	assert.ErrorIs(t, err, types.ErrBadArgument)
}

func TestSequenceCount(t *testing.T) {
	buf := make([]byte, TelemetryHeaderSize)
	require.NoError(t, Init(buf, testTlmID, len(buf)))

	require.NoError(t, SetSequenceCount(buf, 0x1234))
	seq, err := SequenceCount(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), seq)
	assert.Equal(t, byte(0xC0|0x12), buf[2], "flags preserved")

	assert.ErrorIs(t, SetSequenceCount(buf, MaxSequenceCount+1), types.ErrBadArgument)
}

func TestNextSequenceCountWraps(t *testing.T) {
	assert.Equal(t, uint16(1), NextSequenceCount(0))
	assert.Equal(t, MaxSequenceCount, NextSequenceCount(MaxSequenceCount-1))
	assert.Equal(t, uint16(0), NextSequenceCount(MaxSequenceCount))
}

func TestMsgIDValidity(t *testing.T) {
	assert.True(t, MsgID(0).IsValid(DefaultHighestValidMsgID))
	assert.True(t, DefaultHighestValidMsgID.IsValid(DefaultHighestValidMsgID))
	assert.False(t, (DefaultHighestValidMsgID + 1).IsValid(DefaultHighestValidMsgID))
	assert.False(t, InvalidMsgID.IsValid(InvalidMsgID))

	assert.True(t, testCmdID.IsCommand())
	assert.False(t, testTlmID.IsCommand())
	assert.Equal(t, "0x1801", testCmdID.String())
}

func TestFcnCodeAndChecksum(t *testing.T) {
	buf := make([]byte, 16)
	require.NoError(t, Init(buf, testCmdID, 16))
	buf[10] = 0x5A

	require.NoError(t, SetFcnCode(buf, 3))
	code, err := FcnCode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), code)
	assert.ErrorIs(t, SetFcnCode(buf, 0x80), types.ErrBadArgument)

	require.NoError(t, ComputeChecksum(buf))
	ok, err := ValidateChecksum(buf)
	require.NoError(t, err)
	assert.True(t, ok)

	buf[12] ^= 0x01
	ok, err = ValidateChecksum(buf)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommandAccessorsOnTelemetry(t *testing.T) {
	buf := make([]byte, 16)
	require.NoError(t, Init(buf, testTlmID, 16))

	_, err := FcnCode(buf)
	assert.ErrorIs(t, err, types.ErrBadArgument)
	assert.ErrorIs(t, ComputeChecksum(buf), types.ErrBadArgument)
}

func TestMsgTime(t *testing.T) {
	buf := make([]byte, 16)
	require.NoError(t, Init(buf, testTlmID, 16))

	want := Time{Seconds: 0xDEADBEEF, Subseconds: 0x8000}
	require.NoError(t, SetMsgTime(buf, want))
	got, err := MsgTime(buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	cmd := make([]byte, 16)
	require.NoError(t, Init(cmd, testCmdID, 16))
	assert.ErrorIs(t, SetMsgTime(cmd, want), types.ErrBadArgument)
}
