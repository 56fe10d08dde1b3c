package types

// QoS is the quality-of-service requested for a subscription. It is carried
// through the routing table and reported in diagnostics; delivery treats it
// as a class hint only.
type QoS struct {
	Priority    uint8 `json:"priority" yaml:"priority"`
	Reliability uint8 `json:"reliability" yaml:"reliability"`
}

// Priority values.
const (
	PriorityLow  uint8 = 0
	PriorityHigh uint8 = 1
)

// Reliability values.
const (
	ReliabilityLow  uint8 = 0
	ReliabilityHigh uint8 = 1
)

// DefaultQoS is used by plain Subscribe calls.
var DefaultQoS = QoS{Priority: PriorityLow, Reliability: ReliabilityLow}

// String returns a short human-readable form.
func (q QoS) String() string {
	p := "low"
	if q.Priority == PriorityHigh {
		p = "high"
	}
	r := "low"
	if q.Reliability == ReliabilityHigh {
		r = "high"
	}
	return "priority=" + p + ",reliability=" + r
}
