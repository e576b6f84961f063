package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrbox/powergo/internal/bus"
	"github.com/jrbox/powergo/internal/config"
	"github.com/jrbox/powergo/internal/connectors"
	"github.com/jrbox/powergo/internal/notifications"
)

const (
	notificationTitleFileError  = "Recording failed to load"
	notificationTitleCorruption = "Corrupted recording"
)

// NotificationService listens to bus events and emits user-facing alerts.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	connSub := s.bus.Subscribe(connectors.TopicConnStatus)
	fileSub := s.bus.Subscribe(connectors.TopicFileEvent)

	go func() {
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)
		defer s.bus.Unsubscribe(fileSub, connectors.TopicFileEvent)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			case raw, ok := <-fileSub:
				if !ok {
					return
				}
				event, ok := raw.(connectors.FileEvent)
				if !ok {
					continue
				}
				s.handleFileEvent(event)
			}
		}
	}()
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	if status.State != connectors.ConnectionStateConnected &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.Events.ConnectionStatus) {
		return
	}

	transport := notificationTransportName(status.TransportName)
	if transport == "" {
		transport = "Unknown"
	}
	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No connection details"
	}
	if status.State == connectors.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("%s - %s", transport, status.State),
		Content: details,
	})
}

func (s *NotificationService) handleFileEvent(event connectors.FileEvent) {
	prefs := s.notificationPrefs()
	name := displayFileName(event.Path)

	if errText := strings.TrimSpace(event.Err); errText != "" {
		if !s.shouldNotify(prefs, prefs.Events.FileErrors) {
			return
		}
		s.send(notifications.Payload{
			Title:   notificationTitleFileError,
			Content: fmt.Sprintf("%s: %s", name, errText),
		})

		return
	}

	if event.CorruptedPoints > 0 {
		if !s.shouldNotify(prefs, prefs.Events.CorruptionFound) {
			return
		}
		s.send(notifications.Payload{
			Title:   notificationTitleCorruption,
			Content: fmt.Sprintf("%s: %d of %d points corrupted", name, event.CorruptedPoints, event.TotalPoints),
		})
	}
}

func (s *NotificationService) shouldNotify(prefs config.NotificationConfig, kindEnabled bool) bool {
	return prefs.Enabled && kindEnabled
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
	})
}

func displayFileName(path string) string {
	name := filepath.Base(strings.TrimSpace(path))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "recording"
	}

	return name
}

func notificationTransportName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tcp":
		return "TCP"
	case "udp":
		return "UDP"
	case "serial":
		return "Serial"
	default:
		return strings.TrimSpace(name)
	}
}
