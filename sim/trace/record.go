// Package trace provides diagnostic recording of requests that left the
// simulation without reaching a consumer.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// DropRecord captures a routing miss: a matured request no outgoing
// connection of its node accepted.
type DropRecord struct {
	RequestID string
	Type      string
	Node      string
	Clock     int64
	ExecuteAt int64 // maturation tick of the dropped entry
	StartedAt int64
}

// TerminationRecord captures a request force-ended because its node was removed.
type TerminationRecord struct {
	RequestID string
	Type      string
	Node      string
	Clock     int64
	StartedAt int64
}
