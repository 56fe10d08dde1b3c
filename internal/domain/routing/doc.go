// Package routing maps message ids to subscribed pipes.
//
// Each known id owns an entry holding its destination list and its
// telemetry sequence counter. Destination lists are copy-on-write: writers
// clone, modify and swap under the write lock, so a slice returned by
// Lookup stays valid and unchanged for as long as the caller iterates it.
// Entries outlive their last subscriber so sequence counts continue
// across unsubscribe/resubscribe; an empty entry is reclaimed only when a
// new id needs its place.
package routing
