package msg

import (
	"encoding/binary"
	"fmt"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// MsgID identifies a message stream. It is the stream id word of the
// primary header.
type MsgID uint32

// InvalidMsgID is never a routable id.
const InvalidMsgID MsgID = 0xFFFFFFFF

// DefaultHighestValidMsgID is the platform default upper bound on ids.
const DefaultHighestValidMsgID MsgID = 0x1FFF

// Header layout.
const (
	PrimaryHeaderSize   = 6
	CommandHeaderSize   = PrimaryHeaderSize + 2
	TelemetryHeaderSize = PrimaryHeaderSize + 6

	// MaxSequenceCount is the largest sequence count; counts wrap to 0.
	MaxSequenceCount uint16 = 0x3FFF

	// MaxFcnCode is the largest command function code.
	MaxFcnCode uint8 = 0x7F

	commandBit   = 0x1000
	secHeaderBit = 0x0800
	seqFlagsMask = 0xC000
	seqCountMask = 0x3FFF
	lengthBias   = 7
)

// Type is the message type tag carried in the stream id.
type Type uint8

const (
	TypeTelemetry Type = iota
	TypeCommand
)

func (t Type) String() string {
	if t == TypeCommand {
		return "cmd"
	}
	return "tlm"
}

// Time is the telemetry secondary header timestamp.
type Time struct {
	Seconds    uint32 `json:"seconds" yaml:"seconds"`
	Subseconds uint16 `json:"subseconds" yaml:"subseconds"`
}

// IsValid reports whether id is in [0, highest].
func (id MsgID) IsValid(highest MsgID) bool {
	return id != InvalidMsgID && id <= highest
}

// IsCommand reports whether id carries the command bit.
func (id MsgID) IsCommand() bool { return id&commandBit != 0 }

func (id MsgID) String() string { return fmt.Sprintf("0x%04X", uint32(id)) }

func checkPrimary(m []byte) error {
	if len(m) < PrimaryHeaderSize {
		return fmt.Errorf("message of %d bytes has no primary header: %w", len(m), types.ErrBadArgument)
	}
	return nil
}

// Init zeroes the first size bytes of buf and writes a primary header for
// id. The secondary header flag and type follow from id.
func Init(buf []byte, id MsgID, size int) error {
	if size < PrimaryHeaderSize || size > len(buf) {
		return fmt.Errorf("init size %d for %d byte buffer: %w", size, len(buf), types.ErrBadArgument)
	}
	if id > 0xFFFF {
		return fmt.Errorf("init msg id %s: %w", id, types.ErrBadArgument)
	}
	clear(buf[:size])
	binary.BigEndian.PutUint16(buf[0:], uint16(id))
	binary.BigEndian.PutUint16(buf[2:], seqFlagsMask)
	return SetSize(buf, size)
}

// GetMsgID returns the stream id. A message too short for a primary header
// yields InvalidMsgID.
func GetMsgID(m []byte) MsgID {
	if len(m) < PrimaryHeaderSize {
		return InvalidMsgID
	}
	return MsgID(binary.BigEndian.Uint16(m[0:]))
}

// SetMsgID rewrites the stream id.
func SetMsgID(m []byte, id MsgID) error {
	if err := checkPrimary(m); err != nil {
		return err
	}
	if id > 0xFFFF {
		return fmt.Errorf("msg id %s does not fit stream id: %w", id, types.ErrBadArgument)
	}
	binary.BigEndian.PutUint16(m[0:], uint16(id))
	return nil
}

// Size returns the total message size recorded in the header.
func Size(m []byte) (int, error) {
	if err := checkPrimary(m); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(m[4:])) + lengthBias, nil
}

// SetSize records the total message size in the header.
func SetSize(m []byte, size int) error {
	if err := checkPrimary(m); err != nil {
		return err
	}
	if size < lengthBias || size-lengthBias > 0xFFFF {
		return fmt.Errorf("size %d not representable: %w", size, types.ErrBadArgument)
	}
	binary.BigEndian.PutUint16(m[4:], uint16(size-lengthBias))
	return nil
}

// GetType returns the message type.
func GetType(m []byte) (Type, error) {
	if err := checkPrimary(m); err != nil {
		return TypeTelemetry, err
	}
	if GetMsgID(m).IsCommand() {
		return TypeCommand, nil
	}
	return TypeTelemetry, nil
}

// HasSecondaryHeader reports whether the secondary header flag is set.
func HasSecondaryHeader(m []byte) bool {
	return len(m) >= PrimaryHeaderSize && binary.BigEndian.Uint16(m[0:])&secHeaderBit != 0
}

// HeaderSize returns the number of header bytes the message claims.
func HeaderSize(m []byte) (int, error) {
	if err := checkPrimary(m); err != nil {
		return 0, err
	}
	switch {
	case !HasSecondaryHeader(m):
		return PrimaryHeaderSize, nil
	case GetMsgID(m).IsCommand():
		return CommandHeaderSize, nil
	default:
		return TelemetryHeaderSize, nil
	}
}

// HeaderSizeFor returns the header size a message with stream id id uses.
func HeaderSizeFor(id MsgID) int {
	switch {
	case id&secHeaderBit == 0:
		return PrimaryHeaderSize
	case id.IsCommand():
		return CommandHeaderSize
	default:
		return TelemetryHeaderSize
	}
}

// SequenceCount returns the 14-bit sequence count.
func SequenceCount(m []byte) (uint16, error) {
	if err := checkPrimary(m); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(m[2:]) & seqCountMask, nil
}

// SetSequenceCount writes the sequence count, leaving the flags intact.
func SetSequenceCount(m []byte, seq uint16) error {
	if err := checkPrimary(m); err != nil {
		return err
	}
	if seq > MaxSequenceCount {
		return fmt.Errorf("sequence count %d: %w", seq, types.ErrBadArgument)
	}
	w := binary.BigEndian.Uint16(m[2:])
	binary.BigEndian.PutUint16(m[2:], w&seqFlagsMask|seq)
	return nil
}

// NextSequenceCount returns the count following seq, wrapping at
// MaxSequenceCount.
func NextSequenceCount(seq uint16) uint16 {
	if seq >= MaxSequenceCount {
		return 0
	}
	return seq + 1
}

func commandHeader(m []byte) error {
	h, err := HeaderSize(m)
	if err != nil {
		return err
	}
	if h != CommandHeaderSize || len(m) < CommandHeaderSize {
		return fmt.Errorf("message %s has no command header: %w", GetMsgID(m), types.ErrBadArgument)
	}
	return nil
}

func telemetryHeader(m []byte) error {
	h, err := HeaderSize(m)
	if err != nil {
		return err
	}
	if h != TelemetryHeaderSize || len(m) < TelemetryHeaderSize {
		return fmt.Errorf("message %s has no telemetry header: %w", GetMsgID(m), types.ErrBadArgument)
	}
	return nil
}

// FcnCode returns the command function code.
func FcnCode(m []byte) (uint8, error) {
	if err := commandHeader(m); err != nil {
		return 0, err
	}
	return m[PrimaryHeaderSize] & MaxFcnCode, nil
}

// SetFcnCode writes the command function code.
func SetFcnCode(m []byte, code uint8) error {
	if err := commandHeader(m); err != nil {
		return err
	}
	if code > MaxFcnCode {
		return fmt.Errorf("function code %d: %w", code, types.ErrBadArgument)
	}
	m[PrimaryHeaderSize] = m[PrimaryHeaderSize]&^MaxFcnCode | code
	return nil
}

// ComputeChecksum sets the command checksum so that the XOR of every byte
// in the message equals 0xFF.
func ComputeChecksum(m []byte) error {
	if err := commandHeader(m); err != nil {
		return err
	}
	size, err := Size(m)
	if err != nil {
		return err
	}
	if size > len(m) {
		return fmt.Errorf("size %d exceeds %d byte buffer: %w", size, len(m), types.ErrBadArgument)
	}
	m[PrimaryHeaderSize+1] = 0
	m[PrimaryHeaderSize+1] = xorSum(m[:size]) ^ 0xFF
	return nil
}

// ValidateChecksum reports whether the command checksum is correct.
func ValidateChecksum(m []byte) (bool, error) {
	if err := commandHeader(m); err != nil {
		return false, err
	}
	size, err := Size(m)
	if err != nil {
		return false, err
	}
	if size > len(m) {
		return false, fmt.Errorf("size %d exceeds %d byte buffer: %w", size, len(m), types.ErrBadArgument)
	}
	return xorSum(m[:size]) == 0xFF, nil
}

func xorSum(b []byte) uint8 {
	var x uint8
	for _, c := range b {
		x ^= c
	}
	return x
}

// MsgTime returns the telemetry timestamp.
func MsgTime(m []byte) (Time, error) {
	if err := telemetryHeader(m); err != nil {
		return Time{}, err
	}
	return Time{
		Seconds:    binary.BigEndian.Uint32(m[PrimaryHeaderSize:]),
		Subseconds: binary.BigEndian.Uint16(m[PrimaryHeaderSize+4:]),
	}, nil
}

// SetMsgTime writes the telemetry timestamp.
func SetMsgTime(m []byte, t Time) error {
	if err := telemetryHeader(m); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m[PrimaryHeaderSize:], t.Seconds)
	binary.BigEndian.PutUint16(m[PrimaryHeaderSize+4:], t.Subseconds)
	return nil
}
