// Package pipe implements the bounded per-task mailbox.
//
// The queue is a buffered channel sized to the pipe depth. A mutex guards
// the per-message-id in-flight counts that enforce route message limits,
// so an enqueue checks both limits and appends atomically. Only Dequeue
// blocks, and only for as long as its Timeout allows.
package pipe
