package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

// RetentionMode controls how the live series store bounds its memory.
type RetentionMode string

// WindowKind selects how the display window is cut from stored series.
type WindowKind string

const (
	ConnectorTCP    ConnectorType = "tcp"
	ConnectorUDP    ConnectorType = "udp"
	ConnectorSerial ConnectorType = "serial"

	RetentionScroll  RetentionMode = "scroll"
	RetentionKeepAll RetentionMode = "keep_all"

	WindowGrowing WindowKind = "growing"
	WindowSliding WindowKind = "sliding"

	DefaultTCPPort          = 8080
	DefaultUDPPort          = 8081
	DefaultSerialBaud       = 115200
	DefaultStreamIntervalMS = 100

	minStreamIntervalMS = 50
	maxStreamIntervalMS = 5000
)

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector        ConnectorType `json:"connector"`
	Host             string        `json:"host"`
	TCPPort          int           `json:"tcp_port"`
	UDPPort          int           `json:"udp_port"`
	SerialPort       string        `json:"serial_port"`
	SerialBaud       int           `json:"serial_baud"`
	StreamIntervalMS int           `json:"stream_interval_ms"`
}

// TelemetryConfig defines live series retention and windowing behavior.
type TelemetryConfig struct {
	Retention       RetentionMode `json:"retention"`
	MaxPoints       int           `json:"max_points"`
	Window          WindowKind    `json:"window"`
	WindowSeconds   float64       `json:"window_seconds"`
	GrowingCap      int           `json:"growing_cap"`
	DrainIntervalMS int           `json:"drain_interval_ms"`
	BufferCapacity  int           `json:"buffer_capacity"`
}

// DevicesConfig points at the device registry file. An empty path selects
// the embedded default registry.
type DevicesConfig struct {
	RegistryPath string `json:"registry_path"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level      string `json:"level"`
	LogToFile  bool   `json:"log_to_file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled bool                     `json:"enabled"`
	Events  NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	ConnectionStatus bool `json:"connection_status"`
	FileErrors       bool `json:"file_errors"`
	CorruptionFound  bool `json:"corruption_found"`
}

// HistoryConfig controls the local session and recent-file database.
type HistoryConfig struct {
	Enabled     bool `json:"enabled"`
	RecentLimit int  `json:"recent_limit"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection"`
	Telemetry     TelemetryConfig    `json:"telemetry"`
	Devices       DevicesConfig      `json:"devices"`
	Logging       LoggingConfig      `json:"logging"`
	Notifications NotificationConfig `json:"notifications"`
	History       HistoryConfig      `json:"history"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:        ConnectorTCP,
			Host:             "",
			TCPPort:          DefaultTCPPort,
			UDPPort:          DefaultUDPPort,
			SerialPort:       "",
			SerialBaud:       DefaultSerialBaud,
			StreamIntervalMS: DefaultStreamIntervalMS,
		},
		Telemetry: TelemetryConfig{
			Retention:       RetentionScroll,
			MaxPoints:       3000,
			Window:          WindowSliding,
			WindowSeconds:   60,
			GrowingCap:      0,
			DrainIntervalMS: 50,
			BufferCapacity:  64,
		},
		Devices: DevicesConfig{
			RegistryPath: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogToFile:  false,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Events: NotificationEventsConfig{
				ConnectionStatus: true,
				FileErrors:       true,
				CorruptionFound:  true,
			},
		},
		History: HistoryConfig{
			Enabled:     true,
			RecentLimit: 10,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorTCP
	}
	if c.Connection.TCPPort <= 0 {
		c.Connection.TCPPort = DefaultTCPPort
	}
	if c.Connection.UDPPort <= 0 {
		c.Connection.UDPPort = DefaultUDPPort
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	c.Connection.StreamIntervalMS = clampStreamInterval(c.Connection.StreamIntervalMS)
	c.Telemetry = normalizeTelemetry(c.Telemetry)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 14
	}
	if c.History.RecentLimit <= 0 {
		c.History.RecentLimit = 10
	}
}

func clampStreamInterval(ms int) int {
	if ms <= 0 {
		return DefaultStreamIntervalMS
	}
	if ms < minStreamIntervalMS {
		return minStreamIntervalMS
	}
	if ms > maxStreamIntervalMS {
		return maxStreamIntervalMS
	}

	return ms
}

func normalizeTelemetry(t TelemetryConfig) TelemetryConfig {
	switch t.Retention {
	case RetentionKeepAll:
	default:
		t.Retention = RetentionScroll
	}
	switch t.Window {
	case WindowGrowing:
	default:
		t.Window = WindowSliding
	}
	if t.MaxPoints <= 0 {
		t.MaxPoints = 3000
	}
	if t.WindowSeconds <= 0 {
		t.WindowSeconds = 60
	}
	if t.GrowingCap < 0 {
		t.GrowingCap = 0
	}
	if t.DrainIntervalMS <= 0 {
		t.DrainIntervalMS = 50
	}
	if t.BufferCapacity <= 0 {
		t.BufferCapacity = 64
	}

	return t
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorTCP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("tcp host is required")
		}
		if c.Connection.TCPPort <= 0 || c.Connection.TCPPort > 65535 {
			return errors.New("tcp port must be in 1..65535")
		}
	case ConnectorUDP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("udp host is required")
		}
		if c.Connection.UDPPort <= 0 || c.Connection.UDPPort > 65535 {
			return errors.New("udp port must be in 1..65535")
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
