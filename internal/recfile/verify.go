package recfile

import (
	"fmt"
	"math"
)

// maxReportReasons caps the human-readable reason list; Indices always
// carries every flagged point.
const maxReportReasons = 10

// CorruptionReport lists the recorded points that fail verification.
// Indices are positions in the data array, ascending, each listed once.
type CorruptionReport struct {
	Total   int
	Indices []int
	Reasons []string
}

func (r CorruptionReport) Corrupted() bool {
	return len(r.Indices) > 0
}

func (r CorruptionReport) Summary() string {
	if !r.Corrupted() {
		return fmt.Sprintf("all %d points valid", r.Total)
	}

	return fmt.Sprintf("%d of %d points corrupted", len(r.Indices), r.Total)
}

// Verify checks every recorded point against the expected field schema.
// A point is flagged when it is not an object, when its time value is
// missing, non-numeric, non-finite or negative, or when any recognized
// field it carries is non-numeric or non-finite. Scanning a point stops
// at its first defect. Fields outside the schema are ignored.
func Verify(data []any, schema []string) CorruptionReport {
	report := CorruptionReport{Total: len(data)}

	for i, raw := range data {
		point, ok := raw.(map[string]any)
		if !ok {
			report.flag(i, fmt.Sprintf("point %d is not an object", i))

			continue
		}

		t, present := point["time"]
		if !present {
			report.flag(i, fmt.Sprintf("point %d has no time value", i))

			continue
		}
		tv, ok := numericValue(t)
		if !ok {
			report.flag(i, fmt.Sprintf("point %d has a non-numeric time value", i))

			continue
		}
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			report.flag(i, fmt.Sprintf("point %d has a non-finite time value", i))

			continue
		}
		if tv < 0 {
			report.flag(i, fmt.Sprintf("point %d has a negative time value", i))

			continue
		}

		for _, key := range schema {
			v, present := point[key]
			if !present {
				continue
			}
			fv, ok := numericValue(v)
			if !ok {
				report.flag(i, fmt.Sprintf("point %d field %s is non-numeric", i, key))

				break
			}
			if math.IsNaN(fv) || math.IsInf(fv, 0) {
				report.flag(i, fmt.Sprintf("point %d field %s is non-finite", i, key))

				break
			}
		}
	}

	return report
}

func (r *CorruptionReport) flag(index int, reason string) {
	r.Indices = append(r.Indices, index)
	if len(r.Reasons) < maxReportReasons {
		r.Reasons = append(r.Reasons, reason)
	}
}
