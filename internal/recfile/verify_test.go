package recfile

import (
	"math"
	"strings"
	"testing"
)

func TestVerifyFlagsBadTimeAndFieldValues(t *testing.T) {
	data := []any{
		map[string]any{"time": float64(0), "TE-1_volt": float64(1)},
		map[string]any{"time": float64(-1), "TE-1_volt": float64(2)},
		map[string]any{"TE-1_volt": float64(3)},
		map[string]any{"time": float64(2), "TE-1_volt": "x"},
	}

	report := Verify(data, []string{"TE-1_volt"})

	if report.Total != 4 {
		t.Fatalf("expected total 4, got %d", report.Total)
	}
	if !report.Corrupted() {
		t.Fatalf("expected the report to flag corruption")
	}
	expected := []int{1, 2, 3}
	if len(report.Indices) != len(expected) {
		t.Fatalf("expected indices %v, got %v", expected, report.Indices)
	}
	for i := range expected {
		if report.Indices[i] != expected[i] {
			t.Fatalf("expected indices %v, got %v", expected, report.Indices)
		}
	}
	if got := report.Summary(); got != "3 of 4 points corrupted" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestVerifyReasonPerDefect(t *testing.T) {
	cases := []struct {
		name   string
		point  any
		reason string
	}{
		{"not an object", []any{float64(1)}, "is not an object"},
		{"missing time", map[string]any{"TE-1_volt": float64(1)}, "has no time value"},
		{"non-numeric time", map[string]any{"time": "12:00:00"}, "non-numeric time"},
		{"non-finite time", map[string]any{"time": math.NaN()}, "non-finite time"},
		{"negative time", map[string]any{"time": float64(-5)}, "negative time"},
		{"non-numeric field", map[string]any{"time": float64(0), "TE-1_volt": true}, "field TE-1_volt is non-numeric"},
		{"non-finite field", map[string]any{"time": float64(0), "TE-1_volt": math.Inf(1)}, "field TE-1_volt is non-finite"},
	}

	for _, tc := range cases {
		report := Verify([]any{tc.point}, []string{"TE-1_volt"})
		if len(report.Indices) != 1 || report.Indices[0] != 0 {
			t.Fatalf("%s: expected index 0 flagged, got %v", tc.name, report.Indices)
		}
		if len(report.Reasons) != 1 || !strings.Contains(report.Reasons[0], tc.reason) {
			t.Fatalf("%s: expected reason containing %q, got %v", tc.name, tc.reason, report.Reasons)
		}
	}
}

func TestVerifyIgnoresFieldsOutsideSchema(t *testing.T) {
	data := []any{
		map[string]any{"time": float64(0), "TE-1_volt": float64(12), "note": "startup"},
		map[string]any{"time": float64(100)},
	}

	report := Verify(data, []string{"TE-1_volt"})
	if report.Corrupted() {
		t.Fatalf("expected a clean report, got %v", report.Reasons)
	}
	if got := report.Summary(); got != "all 2 points valid" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestVerifyCapsReasonsButKeepsAllIndices(t *testing.T) {
	data := make([]any, 0, 25)
	for i := 0; i < 25; i++ {
		data = append(data, map[string]any{"TE-1_volt": float64(i)})
	}

	report := Verify(data, []string{"TE-1_volt"})
	if len(report.Indices) != 25 {
		t.Fatalf("expected 25 flagged indices, got %d", len(report.Indices))
	}
	if len(report.Reasons) != maxReportReasons {
		t.Fatalf("expected %d reasons, got %d", maxReportReasons, len(report.Reasons))
	}
	if got := report.Summary(); got != "25 of 25 points corrupted" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestVerifyStopsAtFirstDefectPerPoint(t *testing.T) {
	data := []any{
		map[string]any{"time": float64(0), "TE-1_volt": "x", "TE-1_curr": "y"},
	}

	report := Verify(data, []string{"TE-1_curr", "TE-1_volt"})
	if len(report.Indices) != 1 {
		t.Fatalf("expected the point flagged once, got %v", report.Indices)
	}
	if len(report.Reasons) != 1 {
		t.Fatalf("expected a single reason, got %v", report.Reasons)
	}
}
