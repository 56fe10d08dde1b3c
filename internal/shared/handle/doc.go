// Package handle provides generation-checked resource handles.
//
// A Table is a fixed-size slot table. Allocate returns an ID that encodes
// the slot index and the slot's generation; Release bumps the generation,
// so a handle kept after its resource was freed no longer validates even
// when the slot is reused.
//
// Generations are 16 bits, so staleness detection is bounded: a handle
// kept across 65535 releases of its own slot aliases whatever holds the
// slot next. Released slots are reused oldest first, which spreads churn
// over the whole table; with n slots that takes about 65535*n releases.
//
// Example Usage:
//
//	pipes, _ := handle.NewTable[*pipe.Pipe](64, "pipe")
//	id, err := pipes.Allocate(p)
//	if p, ok := pipes.Lookup(id); ok {
//	    ...
//	}
//	pipes.Release(id)
package handle
