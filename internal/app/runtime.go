package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jrbox/powergo/internal/box"
	"github.com/jrbox/powergo/internal/bus"
	"github.com/jrbox/powergo/internal/config"
	"github.com/jrbox/powergo/internal/connectors"
	"github.com/jrbox/powergo/internal/device"
	"github.com/jrbox/powergo/internal/history"
	"github.com/jrbox/powergo/internal/logging"
	"github.com/jrbox/powergo/internal/notifications"
	"github.com/jrbox/powergo/internal/recfile"
	"github.com/jrbox/powergo/internal/telemetry"
	"github.com/jrbox/powergo/internal/transport"
)

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	RecentRepo  *history.RecentFileRepo
	SessionRepo *history.SessionRepo
	WriterQueue *history.WriterQueue

	Registry *device.Registry
	Session  *telemetry.Session

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool

	liveMu        sync.Mutex
	boxService    *box.Service
	liveSessionID int64
	liveStarted   time.Time
}

// Options adjust how the runtime is assembled. The zero value keeps
// the per-user defaults.
type Options struct {
	// ConfigFile replaces the default config file location.
	ConfigFile string

	// OverrideConfig runs on the loaded config before components are
	// wired. Changes stay in memory and are never written back.
	OverrideConfig func(cfg *config.AppConfig)
}

func Initialize(parent context.Context) (*Runtime, error) {
	return InitializeWithOptions(parent, Options{})
}

// InitializeWithOptions loads config, configures logging and history,
// and wires the bus and the telemetry session into a runtime.
func InitializeWithOptions(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	if cf := strings.TrimSpace(opts.ConfigFile); cf != "" {
		paths.ConfigFile = cf
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.OverrideConfig != nil {
		opts.OverrideConfig(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("apply config overrides: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting powergo runtime", "version", BuildVersion(), "build_date", BuildDateYMD())

	registry, err := loadRegistry(cfg.Devices)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Registry = registry

	if cfg.History.Enabled {
		db, err := history.Open(ctx, paths.DBFile)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.DB = db
		rt.RecentRepo = history.NewRecentFileRepo(db)
		rt.SessionRepo = history.NewSessionRepo(db)

		writerQueue := history.NewWriterQueue(logMgr.Logger("history"), 64)
		writerQueue.Start(ctx)
		rt.WriterQueue = writerQueue
	}

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	session := telemetry.NewSession(logMgr.Logger("telemetry"), registry, telemetrySettings(cfg.Telemetry))
	session.Start(ctx, b)
	rt.Session = session

	notifier := NewNotificationService(
		b,
		rt.CurrentConfig,
		notifications.NewBeeepSender(logMgr.Logger("notifications")),
		logMgr.Logger("app.notifications"),
	)
	notifier.Start(ctx)

	return rt, nil
}

func loadRegistry(cfg config.DevicesConfig) (*device.Registry, error) {
	path := strings.TrimSpace(cfg.RegistryPath)
	if path == "" {
		return device.Default(), nil
	}
	reg, err := device.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load device registry: %w", err)
	}

	return reg, nil
}

func telemetrySettings(cfg config.TelemetryConfig) telemetry.Settings {
	settings := telemetry.Settings{
		DrainInterval:  time.Duration(cfg.DrainIntervalMS) * time.Millisecond,
		BufferCapacity: cfg.BufferCapacity,
	}
	switch cfg.Retention {
	case config.RetentionKeepAll:
		settings.Retention = telemetry.KeepAllRetention()
	default:
		settings.Retention = telemetry.ScrollRetention(cfg.MaxPoints)
	}
	switch cfg.Window {
	case config.WindowGrowing:
		settings.Window = telemetry.GrowingWindow(cfg.GrowingCap)
	default:
		settings.Window = telemetry.SlidingWindow(cfg.WindowSeconds)
	}

	return settings
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()

	return status, known
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// StartLive opens the configured connector, starts a fresh live series and
// asks the box to stream telemetry. A running live session is stopped
// first.
func (r *Runtime) StartLive(ctx context.Context) error {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()
	r.stopLiveLocked()

	connCfg := r.CurrentConfig().Connection
	tr, err := NewTransportForConnection(connCfg)
	if err != nil {
		return err
	}

	svc := box.NewService(r.LogManager.Logger("box"), r.Bus, tr)
	if err := svc.Start(r.Ctx); err != nil {
		return err
	}

	r.Session.BeginLive()
	r.boxService = svc
	r.liveStarted = time.Now()
	r.liveSessionID = 0

	if r.SessionRepo != nil {
		dbCtx, cancel := context.WithTimeout(r.Ctx, 5*time.Second)
		id, err := r.SessionRepo.Begin(
			dbCtx,
			TransportNameFromConnector(connCfg.Connector),
			ConnectionTarget(connCfg),
			r.liveStarted,
		)
		cancel()
		if err != nil {
			slog.Warn("record session start", "error", err)
		} else {
			r.liveSessionID = id
		}
	}

	r.requestStream(ctx, tr, connCfg)

	return nil
}

// requestStream asks the box to push live data. Over UDP the box streams
// to an explicit target, so the local socket address rides along.
func (r *Runtime) requestStream(ctx context.Context, tr transport.Transport, connCfg config.ConnectionConfig) {
	cmd := box.StartStream(connCfg.StreamIntervalMS, "", 0)
	if udp, ok := tr.(*transport.UDPTransport); ok {
		if ip, port, ok := udp.LocalAddr(); ok {
			cmd = box.StartStream(connCfg.StreamIntervalMS, ip, port)
		}
	}
	if err := r.boxService.Send(ctx, cmd); err != nil {
		slog.Warn("request telemetry stream", "error", err)
	}
}

func (r *Runtime) StopLive() {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()
	r.stopLiveLocked()
}

func (r *Runtime) stopLiveLocked() {
	if r.boxService == nil {
		return
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := r.boxService.Send(stopCtx, box.StopStream()); err != nil {
		slog.Debug("stop telemetry stream", "error", err)
	}
	cancel()
	r.boxService.Stop()

	if r.SessionRepo != nil && r.liveSessionID > 0 && r.WriterQueue != nil {
		repo := r.SessionRepo
		id := r.liveSessionID
		ended := time.Now()
		points := r.Session.Store().Len()
		dropped := int(r.Session.Dropped())
		r.WriterQueue.Enqueue("session.finish", func(ctx context.Context) error {
			return repo.Finish(ctx, id, ended, points, dropped)
		})
	}

	r.boxService = nil
	r.liveSessionID = 0
}

// LiveRunning reports whether a box connection is currently up.
func (r *Runtime) LiveRunning() bool {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()

	return r.boxService != nil
}

// SendCommand forwards a control command to the connected box.
func (r *Runtime) SendCommand(ctx context.Context, cmd box.Command) error {
	r.liveMu.Lock()
	svc := r.boxService
	r.liveMu.Unlock()
	if svc == nil {
		return fmt.Errorf("no live connection")
	}

	return svc.Send(ctx, cmd)
}

// LoadResult summarizes a recording load.
type LoadResult struct {
	Path        string
	Points      int
	Skipped     int
	DurationSec float64
	Report      recfile.CorruptionReport
	Repaired    bool
}

// LoadRecording ingests a recorded data file, replacing the current
// series. With repair enabled a corrupted file is rewritten in place,
// after a backup, before ingestion.
func (r *Runtime) LoadRecording(path string, repair bool) (LoadResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	result := LoadResult{Path: absPath}

	rec, err := recfile.Load(absPath)
	if err != nil {
		r.publishFileError(absPath, err)

		return result, err
	}
	if err := rec.Validate(); err != nil {
		r.publishFileError(absPath, err)

		return result, err
	}

	schema := r.Registry.RecordedFieldKeys()
	result.Report = recfile.Verify(rec.Data, schema)
	if result.Report.Corrupted() && repair {
		if err := recfile.Repair(absPath, rec, result.Report); err != nil {
			r.publishFileError(absPath, err)

			return result, err
		}
		result.Repaired = true
	}

	points, skipped := rec.ToPoints(schema)
	result.Points = len(points)
	result.Skipped = skipped
	result.DurationSec = rec.DurationSec

	r.Session.LoadPoints(points, schema)
	r.touchRecentFile(absPath, len(points), rec.DurationSec)

	r.Bus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path:            absPath,
		CorruptedPoints: len(result.Report.Indices),
		TotalPoints:     result.Report.Total,
		Timestamp:       time.Now(),
	})

	return result, nil
}

func (r *Runtime) publishFileError(path string, err error) {
	r.Bus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path:      path,
		Err:       err.Error(),
		Timestamp: time.Now(),
	})
}

func (r *Runtime) touchRecentFile(path string, points int, durationSec float64) {
	if r.RecentRepo == nil || r.WriterQueue == nil {
		return
	}

	repo := r.RecentRepo
	limit := r.CurrentConfig().History.RecentLimit
	entry := history.RecentFile{
		Path:         path,
		LastOpenedAt: time.Now(),
		PointCount:   points,
		DurationSec:  durationSec,
	}
	r.WriterQueue.Enqueue("recent.touch", func(ctx context.Context) error {
		if err := repo.Touch(ctx, entry); err != nil {
			return err
		}

		return repo.Prune(ctx, limit)
	})
}

// RecentFiles lists the recently opened recordings, newest first.
// Entries whose file is gone from disk are dropped and queued for
// removal from the history database.
func (r *Runtime) RecentFiles(ctx context.Context) ([]history.RecentFile, error) {
	if r.RecentRepo == nil {
		return nil, nil
	}

	entries, err := r.RecentRepo.List(ctx, r.CurrentConfig().History.RecentLimit)
	if err != nil {
		return nil, err
	}

	kept := entries[:0]
	for _, entry := range entries {
		if _, statErr := os.Stat(entry.Path); os.IsNotExist(statErr) {
			r.dropRecentFile(entry.Path)
			continue
		}
		kept = append(kept, entry)
	}

	return kept, nil
}

func (r *Runtime) dropRecentFile(path string) {
	if r.WriterQueue == nil {
		return
	}

	repo := r.RecentRepo
	r.WriterQueue.Enqueue("recent.remove", func(ctx context.Context) error {
		return repo.Remove(ctx, path)
	})
}

func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()

		return err
	}
	r.Config = cfg
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}

	return nil
}

func (r *Runtime) Close() error {
	r.StopLive()
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}
	return nil
}
