// Package types provides shared data structures for the software bus.
//
// This package defines the types used across bus components and the
// diagnostics surface, so that the domain packages, the dump writers and
// the HTTP API agree on one shape.
//
// Core Types:
//   - QoS: Subscription quality-of-service hint
//   - Counters: Housekeeping counters
//   - PoolStats, PipeStats: Resource usage
//   - PipeInfo, RouteInfo, MapInfo: Diagnostic dump entries
//   - BusStats: Whole-bus snapshot
//
// Errors:
//   - ErrBadArgument, ErrMsgTooBig, ErrBufferInvalid, ErrTimeout,
//     ErrResourceExhausted: status categories
//   - ErrPipeFull, ErrMsgLimit, ErrMaxPipesMet, ...: detail errors that
//     wrap a category
//
// Example Usage:
//
//	if errors.Is(err, types.ErrTimeout) {
//	    continue
//	}
package types
