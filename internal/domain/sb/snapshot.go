package sb

import (
	"sort"

	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Stats returns the bus counters and resource usage.
func (b *Bus) Stats() types.BusStats {
	return types.BusStats{
		BusID:       b.id.String(),
		Counters:    b.counters.snapshot(),
		Pool:        b.pool.Stats(),
		PipesInUse:  b.pipes.Len(),
		MaxPipes:    b.pipes.Cap(),
		MsgIDsInUse: b.routes.Len(),
		MaxMsgIDs:   b.routes.Cap(),
	}
}

// PipeInfo describes every open pipe, ordered by name.
func (b *Bus) PipeInfo() []types.PipeInfo {
	var out []types.PipeInfo
	b.pipes.Range(func(pid handle.ID, p *pipe.Pipe) bool {
		out = append(out, types.PipeInfo{
			ID:            pid.String(),
			Name:          p.Name(),
			Owner:         p.Owner(),
			Subscriptions: len(b.routes.Subscriptions(pid)),
			Stats:         p.Stats(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PipeStats returns the queue statistics of one pipe.
func (b *Bus) PipeStats(pid handle.ID) (types.PipeStats, error) {
	p, err := b.lookupPipe(pid)
	if err != nil {
		return types.PipeStats{}, err
	}
	return p.Stats(), nil
}

// RoutingInfo lists every route, ordered by message id.
func (b *Bus) RoutingInfo() []types.RouteInfo {
	routes := b.routes.Snapshot()
	out := make([]types.RouteInfo, 0, len(routes))
	for _, r := range routes {
		name := ""
		if p, ok := b.pipes.Lookup(r.Pipe); ok {
			name = p.Name()
		}
		out = append(out, types.RouteInfo{
			MsgID:    uint32(r.MsgID),
			PipeID:   r.Pipe.String(),
			PipeName: name,
			QoS:      r.QoS,
			MsgLimit: r.MsgLimit,
			Active:   r.Active,
			Local:    r.Local,
		})
	}
	return out
}

// MapInfo lists every message id with a route entry.
func (b *Bus) MapInfo() []types.MapInfo {
	entries := b.routes.Map()
	out := make([]types.MapInfo, len(entries))
	for i, e := range entries {
		out[i] = types.MapInfo{MsgID: uint32(e.MsgID), Destinations: e.Destinations, Sequence: e.Sequence}
	}
	return out
}

// ResetCounters zeroes the bus counters, per-pipe statistics and the pool
// high-water mark, and lets suppressed events through again.
func (b *Bus) ResetCounters() {
	b.counters.reset()
	b.pipes.Range(func(_ handle.ID, p *pipe.Pipe) bool {
		p.ResetStats()
		return true
	})
	b.pool.ResetPeak()
	b.events.reset()
	b.refreshGauges()
	b.log.Info("counters reset")
}
