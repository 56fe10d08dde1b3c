// Package bufpool implements the fixed-capacity message buffer pool.
//
// The pool owns one arena, carved at construction into equally sized slots.
// A Buffer is a reference to a slot: it carries the slot's generation and a
// reference token, and every operation checks both under the pool lock. A
// slot returns to the free list when its last reference is released, at
// which point its generation advances and every outstanding copy of every
// old reference fails with ErrBufferInvalid.
//
// Ownership:
//   - Allocate: the caller holds the only reference
//   - Share: mint one more reference, e.g. one per destination queue
//   - Transfer: hand a reference on; the old value is consumed
//   - Release: drop a reference
//
// Byte access never happens under the lock.
package bufpool
