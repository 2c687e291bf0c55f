package trace

import (
	"testing"
)

func TestSimulationTrace_RecordDrop_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for diagnostics
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDiagnostics})

	// WHEN a drop record is recorded
	st.RecordDrop(DropRecord{
		RequestID: "req_1",
		Type:      "ApiRequest",
		Node:      "server",
		Clock:     1000,
		ExecuteAt: 950,
	})

	// THEN the trace contains one drop record with correct data
	if len(st.Drops) != 1 {
		t.Fatalf("expected 1 drop, got %d", len(st.Drops))
	}
	if st.Drops[0].RequestID != "req_1" {
		t.Errorf("expected request ID req_1, got %s", st.Drops[0].RequestID)
	}
	if st.Drops[0].ExecuteAt != 950 {
		t.Errorf("expected ExecuteAt 950, got %d", st.Drops[0].ExecuteAt)
	}
}

func TestSimulationTrace_RecordTermination_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for diagnostics
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDiagnostics})

	// WHEN a termination record is recorded
	st.RecordTermination(TerminationRecord{RequestID: "req_1", Node: "db", Clock: 2000})

	// THEN the trace contains it
	if len(st.Terminations) != 1 {
		t.Fatalf("expected 1 termination, got %d", len(st.Terminations))
	}
	if st.Terminations[0].Node != "db" {
		t.Errorf("expected node db, got %s", st.Terminations[0].Node)
	}
}

func TestSimulationTrace_LevelNone_RecordsNothing(t *testing.T) {
	// GIVEN a trace with tracing disabled
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelNone})

	// WHEN records are offered
	st.RecordDrop(DropRecord{RequestID: "req_1"})
	st.RecordTermination(TerminationRecord{RequestID: "req_2"})

	// THEN nothing is stored
	if len(st.Drops) != 0 || len(st.Terminations) != 0 {
		t.Errorf("expected no records, got %d drops and %d terminations", len(st.Drops), len(st.Terminations))
	}
}

func TestSimulationTrace_MaxRecords_CountsOverflow(t *testing.T) {
	// GIVEN a trace capped at two records per list
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDiagnostics, MaxRecords: 2})

	// WHEN five drops are recorded
	for i := 0; i < 5; i++ {
		st.RecordDrop(DropRecord{Clock: int64(i)})
	}

	// THEN two are stored and three are counted as truncated
	if len(st.Drops) != 2 {
		t.Errorf("expected 2 stored drops, got %d", len(st.Drops))
	}
	if st.Truncated != 3 {
		t.Errorf("expected 3 truncated, got %d", st.Truncated)
	}
	if st.Drops[1].Clock != 1 {
		t.Errorf("expected the first records to be kept, got clock %d", st.Drops[1].Clock)
	}
}

func TestSimulationTrace_NilTrace_IsDisabled(t *testing.T) {
	var st *SimulationTrace
	if st.Enabled() {
		t.Error("nil trace must report disabled")
	}
	// must not panic
	st.RecordDrop(DropRecord{RequestID: "req_1"})
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"diagnostics", true},
		{"", true},
		{"decisions", false},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
