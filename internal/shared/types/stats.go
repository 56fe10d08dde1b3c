package types

// Counters holds the bus housekeeping counters.
type Counters struct {
	MsgsSent              uint64 `json:"msgs_sent" yaml:"msgs_sent"`
	MsgsDelivered         uint64 `json:"msgs_delivered" yaml:"msgs_delivered"`
	NoSubscribers         uint64 `json:"no_subscribers" yaml:"no_subscribers"`
	MsgSendErrors         uint64 `json:"msg_send_errors" yaml:"msg_send_errors"`
	MsgReceiveErrors      uint64 `json:"msg_receive_errors" yaml:"msg_receive_errors"`
	ReceiveTimeouts       uint64 `json:"receive_timeouts" yaml:"receive_timeouts"`
	CreatePipeErrors      uint64 `json:"create_pipe_errors" yaml:"create_pipe_errors"`
	SubscribeErrors       uint64 `json:"subscribe_errors" yaml:"subscribe_errors"`
	PipeOverflowErrors    uint64 `json:"pipe_overflow_errors" yaml:"pipe_overflow_errors"`
	MsgLimitErrors        uint64 `json:"msg_limit_errors" yaml:"msg_limit_errors"`
	BufferInvalidErrors   uint64 `json:"buffer_invalid_errors" yaml:"buffer_invalid_errors"`
	BufferAllocErrors     uint64 `json:"buffer_alloc_errors" yaml:"buffer_alloc_errors"`
	DuplicateSubscription uint64 `json:"duplicate_subscriptions" yaml:"duplicate_subscriptions"`
}

// PoolStats describes buffer pool usage.
type PoolStats struct {
	Capacity    int    `json:"capacity" yaml:"capacity"`
	BufferSize  int    `json:"buffer_size" yaml:"buffer_size"`
	InUse       int    `json:"in_use" yaml:"in_use"`
	PeakInUse   int    `json:"peak_in_use" yaml:"peak_in_use"`
	Allocations uint64 `json:"allocations" yaml:"allocations"`
	Exhausted   uint64 `json:"exhausted" yaml:"exhausted"`
}

// PipeStats describes one pipe's queue.
type PipeStats struct {
	Depth         int    `json:"depth" yaml:"depth"`
	Current       int    `json:"current" yaml:"current"`
	Peak          int    `json:"peak" yaml:"peak"`
	Sent          uint64 `json:"sent" yaml:"sent"`
	Received      uint64 `json:"received" yaml:"received"`
	OverflowDrops uint64 `json:"overflow_drops" yaml:"overflow_drops"`
	LimitDrops    uint64 `json:"limit_drops" yaml:"limit_drops"`
}

// PipeInfo is one entry of the pipe info dump.
type PipeInfo struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Owner         string    `json:"owner" yaml:"owner"`
	Subscriptions int       `json:"subscriptions" yaml:"subscriptions"`
	Stats         PipeStats `json:"stats" yaml:"stats"`
}

// RouteInfo is one entry of the routing info dump.
type RouteInfo struct {
	MsgID    uint32 `json:"msg_id" yaml:"msg_id"`
	PipeID   string `json:"pipe_id" yaml:"pipe_id"`
	PipeName string `json:"pipe_name" yaml:"pipe_name"`
	QoS      QoS    `json:"qos" yaml:"qos"`
	MsgLimit int    `json:"msg_limit" yaml:"msg_limit"`
	Active   bool   `json:"active" yaml:"active"`
	Local    bool   `json:"local" yaml:"local"`
}

// MapInfo is one entry of the message map dump: a message id and the
// number of destinations currently routed.
type MapInfo struct {
	MsgID        uint32 `json:"msg_id" yaml:"msg_id"`
	Destinations int    `json:"destinations" yaml:"destinations"`
	Sequence     uint16 `json:"sequence" yaml:"sequence"`
}

// BusStats is a point-in-time snapshot of the whole bus.
type BusStats struct {
	BusID       string    `json:"bus_id" yaml:"bus_id"`
	Counters    Counters  `json:"counters" yaml:"counters"`
	Pool        PoolStats `json:"pool" yaml:"pool"`
	PipesInUse  int       `json:"pipes_in_use" yaml:"pipes_in_use"`
	MaxPipes    int       `json:"max_pipes" yaml:"max_pipes"`
	MsgIDsInUse int       `json:"msg_ids_in_use" yaml:"msg_ids_in_use"`
	MaxMsgIDs   int       `json:"max_msg_ids" yaml:"max_msg_ids"`
}
