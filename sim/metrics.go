// Tracks simulation-wide request outcomes for the end-of-run report.

package sim

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Metrics aggregates statistics about the simulation for final reporting.
// It implements Observer and is attached to the network by NewSimulator.
type Metrics struct {
	GeneratedRequests  int   // Requests created by producers
	CompletedRequests  int   // Requests drained by consumers
	DroppedRequests    int   // Routing misses
	TerminatedRequests int   // Requests ended by node removal
	TotalLatency       int64 // Sum of EndedAt - StartedAt over completed requests
	MaxLatency         int64
	PeakPending        int   // Max requests queued network-wide at the end of a pass
	Ticks              int   // Completed passes
	SimEndedTime       int64 // Clock when the run ended

	CompletedByNode map[string]int      // consumer label -> drained requests
	DroppedByType   map[RequestType]int // request type -> routing misses
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CompletedByNode: make(map[string]int),
		DroppedByType:   make(map[RequestType]int),
	}
}

func (m *Metrics) RequestGenerated(_ int64, _ *Node, _ *Request) {
	m.GeneratedRequests++
}

func (m *Metrics) RequestDelivered(_ int64, consumer *Node, req *Request) {
	m.CompletedRequests++
	m.CompletedByNode[consumer.Label()]++
	latency := req.Latency()
	m.TotalLatency += latency
	if latency > m.MaxLatency {
		m.MaxLatency = latency
	}
}

func (m *Metrics) RequestDropped(_ int64, _ *Node, entry PendingEntry) {
	m.DroppedRequests++
	m.DroppedByType[entry.Request.Type]++
}

func (m *Metrics) RequestTerminated(_ int64, _ *Node, _ *Request) {
	m.TerminatedRequests++
}

func (m *Metrics) TickCompleted(_ int64, network *Network) {
	m.Ticks++
	if pending := network.PendingRequests(); pending > m.PeakPending {
		m.PeakPending = pending
	}
}

// AverageLatency returns the mean latency of completed requests, in ticks.
func (m *Metrics) AverageLatency() float64 {
	if m.CompletedRequests == 0 {
		return 0
	}
	return float64(m.TotalLatency) / float64(m.CompletedRequests)
}

// Print displays aggregated metrics on stdout.
func (m *Metrics) Print() {
	m.Fprint(os.Stdout)
}

// Fprint writes the aggregated metrics report to w.
func (m *Metrics) Fprint(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Passes               : %d\n", m.Ticks)
	fmt.Fprintf(w, "Simulated Time       : %d ticks\n", m.SimEndedTime)
	fmt.Fprintf(w, "Generated Requests   : %d\n", m.GeneratedRequests)
	fmt.Fprintf(w, "Completed Requests   : %d\n", m.CompletedRequests)
	fmt.Fprintf(w, "Dropped Requests     : %d\n", m.DroppedRequests)
	fmt.Fprintf(w, "Terminated Requests  : %d\n", m.TerminatedRequests)
	fmt.Fprintf(w, "Peak Pending         : %d\n", m.PeakPending)
	if m.CompletedRequests > 0 {
		fmt.Fprintf(w, "Average Latency      : %.2f ticks\n", m.AverageLatency())
		fmt.Fprintf(w, "Max Latency          : %d ticks\n", m.MaxLatency)
	}
	for _, label := range sortedKeys(m.CompletedByNode) {
		fmt.Fprintf(w, "  consumer %-12s: %d\n", label, m.CompletedByNode[label])
	}
	for _, typ := range sortedKeys(m.DroppedByType) {
		fmt.Fprintf(w, "  dropped  %-12s: %d\n", typ, m.DroppedByType[typ])
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
