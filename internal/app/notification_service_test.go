package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jrbox/powergo/internal/bus"
	"github.com/jrbox/powergo/internal/config"
	"github.com/jrbox/powergo/internal/connectors"
	"github.com/jrbox/powergo/internal/notifications"
)

func TestNotificationServiceConnectionStatusChange(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "tcp",
		Target:        "192.168.4.1:8080",
	})

	got := sender.waitForCount(t, 1)
	if got[0].Title != "TCP - connected" {
		t.Fatalf("expected title %q, got %q", "TCP - connected", got[0].Title)
	}
	if got[0].Content != "192.168.4.1:8080" {
		t.Fatalf("expected content %q, got %q", "192.168.4.1:8080", got[0].Content)
	}
}

func TestNotificationServiceSkipsRepeatedConnectionState(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	status := connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "serial",
		Target:        "/dev/ttyUSB0",
	}
	messageBus.Publish(connectors.TopicConnStatus, status)
	messageBus.Publish(connectors.TopicConnStatus, status)

	sender.waitForCount(t, 1)
	sender.assertCount(t, 1)
}

func TestNotificationServiceDisconnectIncludesError(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateDisconnected,
		TransportName: "udp",
		Target:        "192.168.4.1:8081",
		Err:           "read timed out",
	})

	got := sender.waitForCount(t, 1)
	if got[0].Title != "UDP - disconnected" {
		t.Fatalf("expected title %q, got %q", "UDP - disconnected", got[0].Title)
	}
	want := "192.168.4.1:8081 (error: read timed out)"
	if got[0].Content != want {
		t.Fatalf("expected content %q, got %q", want, got[0].Content)
	}
}

func TestNotificationServiceFileError(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path: "/data/run7.json",
		Err:  "decode recording json: unexpected end of JSON input",
	})

	got := sender.waitForCount(t, 1)
	if got[0].Title != notificationTitleFileError {
		t.Fatalf("expected title %q, got %q", notificationTitleFileError, got[0].Title)
	}
	want := "run7.json: decode recording json: unexpected end of JSON input"
	if got[0].Content != want {
		t.Fatalf("expected content %q, got %q", want, got[0].Content)
	}
}

func TestNotificationServiceCorruptionFound(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path:            "/data/run8.json",
		CorruptedPoints: 4,
		TotalPoints:     120,
	})

	got := sender.waitForCount(t, 1)
	if got[0].Title != notificationTitleCorruption {
		t.Fatalf("expected title %q, got %q", notificationTitleCorruption, got[0].Title)
	}
	want := "run8.json: 4 of 120 points corrupted"
	if got[0].Content != want {
		t.Fatalf("expected content %q, got %q", want, got[0].Content)
	}
}

func TestNotificationServiceCleanFileLoadStaysQuiet(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path:        "/data/run9.json",
		TotalPoints: 300,
	})

	sender.assertCount(t, 0)
}

func TestNotificationServiceHonorsDisabledPreferences(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	cfg.Notifications.Enabled = false
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "tcp",
		Target:        "192.168.4.1:8080",
	})
	messageBus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path: "/data/run10.json",
		Err:  "read recording: no such file",
	})

	sender.assertCount(t, 0)
}

func TestNotificationServiceHonorsPerEventToggle(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	cfg.Notifications.Events.CorruptionFound = false
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path:            "/data/run11.json",
		CorruptedPoints: 2,
		TotalPoints:     50,
	})
	messageBus.Publish(connectors.TopicFileEvent, connectors.FileEvent{
		Path: "/data/run12.json",
		Err:  "read recording: no such file",
	})

	got := sender.waitForCount(t, 1)
	if got[0].Title != notificationTitleFileError {
		t.Fatalf("expected only the file error alert, got %q", got[0].Title)
	}
	sender.assertCount(t, 1)
}

func newTestMessageBus(t *testing.T) *bus.PubSubBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(func() {
		messageBus.Close()
	})

	return messageBus
}

type collectingNotificationSender struct {
	mu            sync.Mutex
	notifications []notifications.Payload
	changes       chan struct{}
}

func newCollectingNotificationSender() *collectingNotificationSender {
	return &collectingNotificationSender{
		changes: make(chan struct{}, 1),
	}
}

func (s *collectingNotificationSender) Send(notification notifications.Payload) {
	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *collectingNotificationSender) snapshot() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notifications.Payload, len(s.notifications))
	copy(out, s.notifications)

	return out
}

func (s *collectingNotificationSender) waitForCount(t *testing.T, expected int) []notifications.Payload {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		current := s.snapshot()
		if len(current) >= expected {
			return current
		}
		select {
		case <-s.changes:
		case <-time.After(10 * time.Millisecond):
		}
	}

	t.Fatalf("timed out waiting for %d notifications", expected)

	return nil
}

func (s *collectingNotificationSender) assertCount(t *testing.T, expected int) {
	t.Helper()

	time.Sleep(100 * time.Millisecond)
	current := s.snapshot()
	if len(current) != expected {
		t.Fatalf("expected %d notifications, got %d", expected, len(current))
	}
}
