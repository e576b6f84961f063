package recfile

import (
	"fmt"
	"os"
)

const backupSuffix = ".bak"

// RepairError reports which stage of a repair failed. Op is "backup" or
// "rewrite"; a backup failure means the original file was not modified.
type RepairError struct {
	Op  string
	Err error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("repair %s: %v", e.Op, e.Err)
}

func (e *RepairError) Unwrap() error {
	return e.Err
}

// Repair removes the points flagged in report from rec, recomputes the
// recording duration from the surviving points and rewrites the file at
// path. The original bytes are copied to path+".bak" before anything is
// written; if the backup cannot be created the original is left alone.
// A clean report is a no-op.
func Repair(path string, rec *Recording, report CorruptionReport) error {
	if !report.Corrupted() {
		return nil
	}

	if err := writeBackup(path); err != nil {
		return &RepairError{Op: "backup", Err: err}
	}

	// Indices are ascending, so deleting from the end keeps the
	// remaining ones valid.
	for i := len(report.Indices) - 1; i >= 0; i-- {
		idx := report.Indices[i]
		if idx < 0 || idx >= len(rec.Data) {
			continue
		}
		rec.Data = append(rec.Data[:idx], rec.Data[idx+1:]...)
	}
	rec.DurationSec = dataDurationSec(rec.Data)

	if err := Save(path, rec); err != nil {
		return &RepairError{Op: "rewrite", Err: err}
	}

	return nil
}

// BackupPath returns the path the original file is copied to before a
// repair rewrites it.
func BackupPath(path string) string {
	return path + backupSuffix
}

func writeBackup(path string) error {
	raw, err := os.ReadFile(path) // #nosec G304 -- repairing a user-chosen file
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}

	backup := BackupPath(path)
	f, err := os.Create(backup) // #nosec G304 -- backup sits next to the original
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()

		return fmt.Errorf("write backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("sync backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}

	return nil
}

// dataDurationSec spans the first to the last surviving time value,
// converted from milliseconds to seconds. No points means zero.
func dataDurationSec(data []any) float64 {
	var (
		first, last float64
		found       bool
	)
	for _, raw := range data {
		point, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		t, ok := numericValue(point["time"])
		if !ok {
			continue
		}
		if !found {
			first = t
			found = true
		}
		last = t
	}
	if !found {
		return 0
	}

	return (last - first) / 1000.0
}
