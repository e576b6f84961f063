// Package recfile reads, verifies and repairs the JSON data files the box
// records to its SD card.
package recfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrbox/powergo/internal/telemetry"
)

// ScriptDevice is one device row of a recorded script configuration.
type ScriptDevice struct {
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	OnTime  float64 `json:"onTime"`
	OffTime float64 `json:"offTime"`
}

// ScriptConfig is the automation script header embedded in recordings made
// while a script ran.
type ScriptConfig struct {
	Name       string         `json:"name"`
	TStart     float64        `json:"tstart"`
	TEnd       float64        `json:"tend"`
	Record     bool           `json:"record"`
	Devices    []ScriptDevice `json:"devices"`
	EndedEarly bool           `json:"script_ended_early"`
}

// Recording is one recorded data file. Data entries stay untyped so that
// verification can report malformed points instead of failing the load,
// and so a repair rewrite round-trips exactly the stored values.
type Recording struct {
	UsingScript  int           `json:"using_script"`
	ScriptConfig *ScriptConfig `json:"script_config"`
	Timestamp    string        `json:"timestamp"`
	Data         []any         `json:"data"`
	DurationSec  float64       `json:"duration_sec"`
	EndedEarly   *bool         `json:"script_ended_early,omitempty"`
}

// Load parses a recorded data file without judging its contents, use
// Validate and Verify for that.
func Load(path string) (*Recording, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from user CLI args or the recent files list.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode recording json: %w", err)
	}

	return &rec, nil
}

// Validate checks the coarse shape a recording must have before any
// point-level work makes sense.
func (r *Recording) Validate() error {
	if r.Data == nil {
		return errors.New("recording has no data array")
	}
	if len(r.Data) == 0 {
		return errors.New("recording data array is empty")
	}

	return nil
}

// ToPoints converts the recorded points for ingestion. Stored currents are
// milliamp readings and scale down to amps; other fields pass through.
// Points without a usable time value cannot be placed on the axis and are
// skipped; non-numeric field values are treated as absent.
func (r *Recording) ToPoints(schema []string) ([]telemetry.DataPoint, int) {
	points := make([]telemetry.DataPoint, 0, len(r.Data))
	skipped := 0
	for _, raw := range r.Data {
		m, ok := raw.(map[string]any)
		if !ok {
			skipped++

			continue
		}
		t, ok := numericValue(m["time"])
		if !ok || t < 0 {
			skipped++

			continue
		}

		values := make(map[string]float64, len(schema))
		for _, key := range schema {
			v, present := m[key]
			if !present {
				continue
			}
			f, ok := numericValue(v)
			if !ok {
				continue
			}
			if strings.HasSuffix(key, "_curr") {
				f /= 1000
			}
			values[key] = f
		}
		points = append(points, telemetry.DataPoint{Time: int64(t), Values: values})
	}

	return points, skipped
}

// Save atomically rewrites a recording file.
func Save(path string, rec *Recording) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp recording: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write temp recording: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("sync temp recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("close temp recording: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("rename temp recording: %w", err)
	}

	return nil
}

// numericValue accepts the numeric shapes JSON decoding and tests produce.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
