// Package msg reads and writes the fixed-format message header.
//
// Every message starts with a 6 byte big-endian primary header:
//
//	0..1  stream id (the MsgID); 0x1000 = command, 0x0800 = secondary header
//	2..3  sequence flags (always 11) and a 14-bit sequence count
//	4..5  total length minus 7
//
// Commands with a secondary header add a function code and checksum byte;
// telemetry adds a 4 byte seconds and 2 byte subseconds timestamp.
// Accessors operate on plain byte slices so they work the same on stack
// messages and pool buffers.
package msg
