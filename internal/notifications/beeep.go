package notifications

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// BeeepSender delivers alerts through the native desktop notification
// backend.
type BeeepSender struct {
	logger *slog.Logger
}

func NewBeeepSender(logger *slog.Logger) *BeeepSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &BeeepSender{logger: logger}
}

func (s *BeeepSender) Send(payload Payload) {
	if err := beeep.Notify(payload.Title, payload.Content, ""); err != nil {
		s.logger.Warn("notification delivery failed", "title", payload.Title, "error", err)
	}
}
