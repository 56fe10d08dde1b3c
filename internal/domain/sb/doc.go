// Package sb implements the software bus engine.
//
// A Bus ties together three fixed-size tables built at start-up: the
// buffer pool, the routing table and the pipe table. Publishers hand a
// message to TransmitMsg (copy) or TransmitBuffer (zero-copy); the bus
// looks up the message id, shares one pool buffer with every active
// destination pipe and returns. Subscribers block in ReceiveBuffer and
// release each buffer when done with it.
//
// Delivery Rules:
//   - A full pipe or a route at its message limit drops the newest message
//     for that destination only; the transmit still succeeds
//   - Telemetry sequence counts are stamped per message id on the pool
//     copy when requested; commands are never stamped
//   - Messages on one id reach one pipe in transmit order
//
// Errors wrap the status categories in package types; use Category to
// name one for reporting.
//
// Example Usage:
//
//	bus, _ := sb.New(sb.DefaultConfig(), sb.WithLogger(log))
//	pid, _ := bus.CreatePipe(16, "TO_LAB_PIPE")
//	_ = bus.Subscribe(0x0880, pid)
//	_ = bus.TransmitMsg(pkt, true)
//	buf, err := bus.ReceiveBuffer(pid, pipe.PendForever)
//	...
//	_ = bus.ReleaseMessageBuffer(buf)
package sb
