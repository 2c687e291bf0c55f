package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDrops        int
	TotalTerminations int
	Truncated         int
	DropsByType       map[string]int // request type → drops
	DropsByNode       map[string]int // node → drops
	TerminationsBy    map[string]int // node → terminations
	MeanDropAge       float64        // mean Clock - StartedAt over drops
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		DropsByType:    make(map[string]int),
		DropsByNode:    make(map[string]int),
		TerminationsBy: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDrops = len(st.Drops)
	summary.TotalTerminations = len(st.Terminations)
	summary.Truncated = st.Truncated

	if len(st.Drops) > 0 {
		totalAge := int64(0)
		for _, d := range st.Drops {
			summary.DropsByType[d.Type]++
			summary.DropsByNode[d.Node]++
			totalAge += d.Clock - d.StartedAt
		}
		summary.MeanDropAge = float64(totalAge) / float64(len(st.Drops))
	}
	for _, t := range st.Terminations {
		summary.TerminationsBy[t.Node]++
	}

	return summary
}
