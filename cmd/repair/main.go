package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jrbox/powergo/internal/device"
	"github.com/jrbox/powergo/internal/recfile"
)

func main() {
	corrupted, err := run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("run repair tool", "error", err)
		os.Exit(1)
	}
	if corrupted {
		os.Exit(1)
	}
}

// run verifies every given recording and reports per-file results. It
// returns true when corruption was found that was not fixed.
func run(args []string, out, errOut io.Writer) (bool, error) {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fix := fs.Bool("fix", false, "rewrite corrupted files in place, keeping a .bak copy")
	schemaPath := fs.String("schema", "", "device registry yaml defining the expected fields (defaults to the built-in set)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] recording.json [recording.json ...]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if fs.NArg() == 0 {
		fs.Usage()

		return false, fmt.Errorf("no recording files given")
	}

	schema, err := loadSchema(*schemaPath)
	if err != nil {
		return false, err
	}

	var unfixed, failed int
	for _, path := range fs.Args() {
		corrupted, err := processFile(out, path, schema, *fix)
		if err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", path, err)
			failed++

			continue
		}
		if corrupted {
			unfixed++
		}
	}

	if failed > 0 {
		return unfixed > 0, fmt.Errorf("%d of %d files failed", failed, fs.NArg())
	}

	return unfixed > 0, nil
}

func loadSchema(registryPath string) ([]string, error) {
	path := strings.TrimSpace(registryPath)
	if path == "" {
		return device.Default().RecordedFieldKeys(), nil
	}

	reg, err := device.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load device registry: %w", err)
	}

	return reg.RecordedFieldKeys(), nil
}

// processFile verifies one recording and, with fix set, repairs it. It
// returns true when the file still holds corrupted points afterwards.
func processFile(w io.Writer, path string, schema []string, fix bool) (bool, error) {
	rec, err := recfile.Load(path)
	if err != nil {
		return false, err
	}
	if err := rec.Validate(); err != nil {
		return false, err
	}

	report := recfile.Verify(rec.Data, schema)
	for _, line := range formatReport(path, report) {
		fmt.Fprintln(w, line)
	}
	if !report.Corrupted() {
		return false, nil
	}
	if !fix {
		return true, nil
	}

	if err := recfile.Repair(path, rec, report); err != nil {
		return true, err
	}
	fmt.Fprintf(w, "  repaired, original kept at %s\n", recfile.BackupPath(path))

	return false, nil
}

// formatReport renders one file's verification outcome. The reason list
// is capped upstream; a trailing line accounts for the overflow.
func formatReport(path string, report recfile.CorruptionReport) []string {
	lines := []string{fmt.Sprintf("%s: %s", path, report.Summary())}
	for _, reason := range report.Reasons {
		lines = append(lines, "  "+reason)
	}
	if more := len(report.Indices) - len(report.Reasons); more > 0 {
		lines = append(lines, fmt.Sprintf("  ... %d more", more))
	}

	return lines
}
