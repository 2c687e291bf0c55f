package sim

import "github.com/server-sim/server-sim/sim/trace"

// TraceRecorder is an Observer that writes routing misses and forced
// terminations into a trace.SimulationTrace.
type TraceRecorder struct {
	Trace *trace.SimulationTrace
}

// NewTraceRecorder wraps st. A nil or disabled trace records nothing.
func NewTraceRecorder(st *trace.SimulationTrace) *TraceRecorder {
	return &TraceRecorder{Trace: st}
}

func (r *TraceRecorder) RequestGenerated(int64, *Node, *Request) {}
func (r *TraceRecorder) RequestDelivered(int64, *Node, *Request) {}
func (r *TraceRecorder) TickCompleted(int64, *Network)           {}

func (r *TraceRecorder) RequestDropped(tick int64, node *Node, entry PendingEntry) {
	r.Trace.RecordDrop(trace.DropRecord{
		RequestID: entry.Request.ID,
		Type:      string(entry.Request.Type),
		Node:      node.Label(),
		Clock:     tick,
		ExecuteAt: entry.ExecuteAt,
		StartedAt: entry.Request.StartedAt,
	})
}

func (r *TraceRecorder) RequestTerminated(tick int64, node *Node, req *Request) {
	r.Trace.RecordTermination(trace.TerminationRecord{
		RequestID: req.ID,
		Type:      string(req.Type),
		Node:      node.Label(),
		Clock:     tick,
		StartedAt: req.StartedAt,
	})
}
