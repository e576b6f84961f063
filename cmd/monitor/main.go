package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jrbox/powergo/internal/analysis"
	"github.com/jrbox/powergo/internal/app"
	"github.com/jrbox/powergo/internal/config"
	"github.com/jrbox/powergo/internal/device"
)

const statusLogInterval = 5 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("run monitor", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	ConfigPath    string
	Connector     string
	Host          string
	SerialPort    string
	SerialBaud    int
	IntervalMS    int
	Window        string
	WindowSeconds float64
	Retention     string
	MaxPoints     int
	ListenFor     time.Duration
	Repair        bool
	ListRecent    bool
	ShowVersion   bool
	RecordingPath string
}

func parseRunOptions(args []string) (runOptions, error) {
	var opts runOptions

	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "config file path")
	fs.StringVar(&opts.Connector, "connector", "", "connector type (tcp, udp, serial)")
	fs.StringVar(&opts.Host, "host", "", "box ip/hostname")
	fs.StringVar(&opts.SerialPort, "serial-port", "", "serial port, e.g. /dev/ttyUSB0")
	fs.IntVar(&opts.SerialBaud, "baud", 0, "serial baud rate")
	fs.IntVar(&opts.IntervalMS, "interval", 0, "telemetry stream interval in ms")
	fs.StringVar(&opts.Window, "window", "", "display window mode (growing, sliding)")
	fs.Float64Var(&opts.WindowSeconds, "window-seconds", 0, "sliding window length in seconds")
	fs.StringVar(&opts.Retention, "retention", "", "live retention mode (scroll, keep_all)")
	fs.IntVar(&opts.MaxPoints, "max-points", 0, "scroll retention cap in points")
	fs.DurationVar(&opts.ListenFor, "listen-for", 0, "listen duration, e.g. 30s")
	fs.BoolVar(&opts.Repair, "repair", false, "repair a corrupted recording before loading it")
	fs.BoolVar(&opts.ListRecent, "recent", false, "list recently opened recordings and exit")
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] [recording.json]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return runOptions{}, err
	}

	switch config.WindowKind(opts.Window) {
	case "", config.WindowGrowing, config.WindowSliding:
	default:
		return runOptions{}, fmt.Errorf("unknown window mode: %s", opts.Window)
	}
	switch config.RetentionMode(opts.Retention) {
	case "", config.RetentionScroll, config.RetentionKeepAll:
	default:
		return runOptions{}, fmt.Errorf("unknown retention mode: %s", opts.Retention)
	}

	switch fs.NArg() {
	case 0:
	case 1:
		opts.RecordingPath = fs.Arg(0)
	default:
		return runOptions{}, fmt.Errorf("expected at most one recording path, got %d arguments", fs.NArg())
	}

	return opts, nil
}

// applyOverrides folds the command line flags into the loaded config.
// It reports whether any flag changed a value.
func applyOverrides(cfg *config.AppConfig, opts runOptions) bool {
	connCfg, changed := overrideConnection(cfg.Connection, opts)
	cfg.Connection = connCfg

	if w := config.WindowKind(opts.Window); w != "" {
		cfg.Telemetry.Window = w
		changed = true
	}
	if opts.WindowSeconds > 0 {
		cfg.Telemetry.WindowSeconds = opts.WindowSeconds
		changed = true
	}
	if m := config.RetentionMode(opts.Retention); m != "" {
		cfg.Telemetry.Retention = m
		changed = true
	}
	if opts.MaxPoints > 0 {
		cfg.Telemetry.MaxPoints = opts.MaxPoints
		changed = true
	}

	return changed
}

// overrideConnection lays the command line flags over the configured
// connection. Unset flags leave the config value alone.
func overrideConnection(connCfg config.ConnectionConfig, opts runOptions) (config.ConnectionConfig, bool) {
	changed := false

	if c := strings.TrimSpace(opts.Connector); c != "" {
		connCfg.Connector = config.ConnectorType(c)
		changed = true
	}
	if h := strings.TrimSpace(opts.Host); h != "" {
		connCfg.Host = h
		changed = true
	}
	if p := strings.TrimSpace(opts.SerialPort); p != "" {
		connCfg.SerialPort = p
		changed = true
	}
	if opts.SerialBaud > 0 {
		connCfg.SerialBaud = opts.SerialBaud
		changed = true
	}
	if opts.IntervalMS > 0 {
		connCfg.StreamIntervalMS = opts.IntervalMS
		changed = true
	}

	return connCfg, changed
}

func run() error {
	opts, err := parseRunOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}
	if opts.ShowVersion {
		fmt.Printf("%s %s\n", app.Name, app.BuildVersionWithDate())

		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.InitializeWithOptions(ctx, app.Options{
		ConfigFile: opts.ConfigPath,
		OverrideConfig: func(cfg *config.AppConfig) {
			applyOverrides(cfg, opts)
		},
	})
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	logger := rt.LogManager.Logger("cli")
	logger.Info("starting powergo monitor", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	if opts.ListRecent {
		return printRecentFiles(ctx, os.Stdout, rt)
	}

	if opts.RecordingPath != "" {
		return loadAndReport(os.Stdout, rt, opts)
	}

	return runLive(ctx, rt, logger, opts)
}

// runLive keeps a live session going until interrupt (or for the
// requested duration), draining the ingestion buffer into the store at
// the session's drain interval.
func runLive(ctx context.Context, rt *app.Runtime, logger *slog.Logger, opts runOptions) error {
	if err := rt.StartLive(ctx); err != nil {
		return fmt.Errorf("start live session: %w", err)
	}
	defer rt.StopLive()

	drain := time.NewTicker(rt.Session.DrainInterval())
	defer drain.Stop()
	status := time.NewTicker(statusLogInterval)
	defer status.Stop()

	var listenDone <-chan time.Time
	if opts.ListenFor > 0 {
		logger.Info("listen mode", "duration", opts.ListenFor)
		listenDone = time.After(opts.ListenFor)
	} else {
		logger.Info("listening until interrupt")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-listenDone:
			logger.Info("listen duration elapsed")

			return nil
		case <-drain.C:
			rt.Session.Tick()
		case <-status.C:
			logLiveStatus(logger, rt)
		}
	}
}

func logLiveStatus(logger *slog.Logger, rt *app.Runtime) {
	state := "unknown"
	if connStatus, ok := rt.CurrentConnStatus(); ok {
		state = string(connStatus.State)
	}
	stamps, channels := rt.Session.Window()
	logger.Info(
		"live status",
		"conn", state,
		"points", rt.Session.Store().Len(),
		"window", len(stamps),
		"dropped", rt.Session.Dropped(),
		"latest", latestSummary(rt.Registry, channels),
	)
}

// latestSummary renders the newest windowed voltage/current pair of
// each device for the status line.
func latestSummary(registry *device.Registry, channels map[string][]float64) string {
	var b strings.Builder
	for _, dev := range registry.Devices() {
		volts := channels[device.FieldKey(dev.Name, device.MeasurementVoltage)]
		amps := channels[device.FieldKey(dev.Name, device.MeasurementCurrent)]
		if len(volts) == 0 || len(amps) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s=%.2fV/%.2fA", dev.Short, volts[len(volts)-1], amps[len(amps)-1])
	}
	if b.Len() == 0 {
		return "none"
	}

	return b.String()
}

// loadAndReport ingests a recording the same way an interactive file
// open would, then prints the verification outcome and the electrical
// statistics over the loaded series.
func loadAndReport(w io.Writer, rt *app.Runtime, opts runOptions) error {
	result, err := rt.LoadRecording(opts.RecordingPath, opts.Repair)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}

	fmt.Fprintf(w, "%s\n", result.Path)
	fmt.Fprintf(w, "  %d points ingested, %d skipped, %.1fs recorded\n", result.Points, result.Skipped, result.DurationSec)
	fmt.Fprintf(w, "  verification: %s\n", result.Report.Summary())
	for _, reason := range result.Report.Reasons {
		fmt.Fprintf(w, "    %s\n", reason)
	}
	if more := len(result.Report.Indices) - len(result.Report.Reasons); more > 0 {
		fmt.Fprintf(w, "    ... %d more\n", more)
	}
	if result.Repaired {
		fmt.Fprintf(w, "  repaired in place, original kept at %s.bak\n", result.Path)
	}

	store := rt.Session.Store()
	stats := analysis.Analyze(store.Timestamps(), store.Channels(), rt.Registry)
	printStats(w, stats)

	return nil
}

func printStats(w io.Writer, stats analysis.SummaryStats) {
	for _, dev := range stats.Devices {
		fmt.Fprintf(w, "\n%s: %d samples over %.1fs (%.1f Hz)\n", dev.Name, dev.Samples, dev.DurationSec, dev.PollRateHz)
		fmt.Fprintf(w, "  volts   min %8.3f  avg %8.3f  max %8.3f\n", dev.MinVolts, dev.AvgVolts, dev.MaxVolts)
		fmt.Fprintf(w, "  amps    min %8.3f  avg %8.3f  max %8.3f\n", dev.MinAmps, dev.AvgAmps, dev.MaxAmps)
		fmt.Fprintf(w, "  watts   min %8.3f  avg %8.3f  max %8.3f\n", dev.MinWatts, dev.AvgWatts, dev.MaxWatts)
		fmt.Fprintf(w, "  charge %.4f Ah  energy %.4f Wh\n", dev.AmpHours, dev.WattHours)
	}

	fmt.Fprintf(w, "\nSummary: %d channels, %d samples, %.1fs\n", stats.ChannelCount, stats.Samples, stats.DurationSec)
	if stats.MaxVoltsDevice != "" {
		fmt.Fprintf(w, "  peak volts %.3f (%s)\n", stats.MaxVolts, stats.MaxVoltsDevice)
	}
	if stats.MaxAmpsDevice != "" {
		fmt.Fprintf(w, "  peak amps  %.3f (%s)\n", stats.MaxAmps, stats.MaxAmpsDevice)
	}
	if stats.MaxWattsDevice != "" {
		fmt.Fprintf(w, "  peak watts %.3f (%s)\n", stats.MaxWatts, stats.MaxWattsDevice)
	}
	if stats.MaxWattHoursDevice != "" {
		fmt.Fprintf(w, "  most energy %.4f Wh (%s)\n", stats.MaxWattHours, stats.MaxWattHoursDevice)
	}
	fmt.Fprintf(w, "  total avg draw %.3f W\n", stats.TotalAvgWatts)
	fmt.Fprintf(w, "  totals: %.4f Ah, %.4f Wh (%.6f kWh)\n", stats.TotalAmpHours, stats.TotalWattHours, stats.TotalKWh)
}

func printRecentFiles(ctx context.Context, w io.Writer, rt *app.Runtime) error {
	files, err := rt.RecentFiles(ctx)
	if err != nil {
		return fmt.Errorf("list recent files: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(w, "no recent recordings")

		return nil
	}

	for _, f := range files {
		fmt.Fprintf(w, "%s  %d points, %.1fs, opened %s\n", f.Path, f.PointCount, f.DurationSec, f.LastOpenedAt.Format(time.RFC3339))
	}

	return nil
}
