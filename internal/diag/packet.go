package diag

import (
	"encoding/hex"
	"fmt"

	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Packet is the decoded header view of one bus message, as shown to
// ground tools.
type Packet struct {
	MsgID    string    `json:"msg_id" yaml:"msg_id"`
	Type     string    `json:"type" yaml:"type"`
	Size     int       `json:"size" yaml:"size"`
	Sequence uint16    `json:"sequence" yaml:"sequence"`
	FcnCode  *uint8    `json:"fcn_code,omitempty" yaml:"fcn_code,omitempty"`
	Checksum *bool     `json:"checksum_ok,omitempty" yaml:"checksum_ok,omitempty"`
	Time     *msg.Time `json:"time,omitempty" yaml:"time,omitempty"`
	Payload  string    `json:"payload" yaml:"payload"`
}

// DescribePacket decodes the headers of m. The payload is hex encoded.
func DescribePacket(m []byte) (Packet, error) {
	size, err := msg.Size(m)
	if err != nil {
		return Packet{}, err
	}
	if size > len(m) {
		return Packet{}, fmt.Errorf("size %d exceeds %d byte message: %w", size, len(m), types.ErrBadArgument)
	}
	m = m[:size]

	typ, _ := msg.GetType(m)
	seq, _ := msg.SequenceCount(m)
	hdr, _ := msg.HeaderSize(m)
	if hdr > size {
		hdr = size
	}
	p := Packet{
		MsgID:    msg.GetMsgID(m).String(),
		Type:     typ.String(),
		Size:     size,
		Sequence: seq,
		Payload:  hex.EncodeToString(m[hdr:]),
	}
	if code, err := msg.FcnCode(m); err == nil {
		ok, _ := msg.ValidateChecksum(m)
		p.FcnCode, p.Checksum = &code, &ok
	}
	if t, err := msg.MsgTime(m); err == nil {
		p.Time = &t
	}
	return p, nil
}

// BuildPacket assembles a message for id around payload. Commands with a
// secondary header get fcn and a valid checksum; telemetry time is left
// zero for the caller to stamp.
func BuildPacket(id msg.MsgID, fcn uint8, payload []byte) ([]byte, error) {
	size := msg.HeaderSizeFor(id) + len(payload)
	if size < msg.PrimaryHeaderSize+1 {
		// The length field cannot describe a header-only primary packet.
		size = msg.PrimaryHeaderSize + 1
	}
	pkt := make([]byte, size)
	if err := msg.Init(pkt, id, size); err != nil {
		return nil, err
	}
	copy(pkt[msg.HeaderSizeFor(id):], payload)

	if msg.HeaderSizeFor(id) == msg.CommandHeaderSize {
		if err := msg.SetFcnCode(pkt, fcn); err != nil {
			return nil, err
		}
		if err := msg.ComputeChecksum(pkt); err != nil {
			return nil, err
		}
	}
	return pkt, nil
}
