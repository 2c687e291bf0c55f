package trace

// TraceLevel controls the verbosity of diagnostic tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDiagnostics captures drops and forced terminations.
	TraceLevelDiagnostics TraceLevel = "diagnostics"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelDiagnostics: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords caps each record list; 0 means unbounded. Records past the
	// cap are counted in Truncated instead of stored.
	MaxRecords int
}

// SimulationTrace collects diagnostic records during a simulation.
type SimulationTrace struct {
	Config       TraceConfig
	Drops        []DropRecord
	Terminations []TerminationRecord
	Truncated    int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:       config,
		Drops:        make([]DropRecord, 0),
		Terminations: make([]TerminationRecord, 0),
	}
}

// Enabled reports whether records are collected at all.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDiagnostics
}

// RecordDrop appends a drop record.
func (st *SimulationTrace) RecordDrop(record DropRecord) {
	if !st.Enabled() {
		return
	}
	if st.full(len(st.Drops)) {
		st.Truncated++
		return
	}
	st.Drops = append(st.Drops, record)
}

// RecordTermination appends a termination record.
func (st *SimulationTrace) RecordTermination(record TerminationRecord) {
	if !st.Enabled() {
		return
	}
	if st.full(len(st.Terminations)) {
		st.Truncated++
		return
	}
	st.Terminations = append(st.Terminations, record)
}

func (st *SimulationTrace) full(n int) bool {
	return st.Config.MaxRecords > 0 && n >= st.Config.MaxRecords
}
