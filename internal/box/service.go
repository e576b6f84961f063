package box

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jrbox/powergo/internal/bus"
	"github.com/jrbox/powergo/internal/connectors"
	"github.com/jrbox/powergo/internal/transport"
)

const (
	// maxConsecutiveReadErrors ends a session when the link returns only
	// errors without a single good frame in between.
	maxConsecutiveReadErrors = 5

	sendTimeout = 5 * time.Second
)

// Service owns one connection session to the box: it connects the
// transport, reads and classifies inbound frames onto the bus, and
// serializes outbound commands. A session that ends, for any reason, stays
// ended until the caller starts a new one; there is no automatic
// reconnect at this layer.
type Service struct {
	logger    *slog.Logger
	transport transport.Transport
	bus       bus.MessageBus

	writeMu sync.Mutex

	mu            sync.Mutex
	state         connectors.ConnectionState
	cancel        context.CancelFunc
	done          chan struct{}
	lastHeartbeat time.Time
}

func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport) *Service {
	return &Service{
		logger:    logger,
		transport: tr,
		bus:       b,
		state:     connectors.ConnectionStateDisconnected,
	}
}

// Start connects the transport and spawns the reader goroutine. It blocks
// only for the connection attempt itself.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()

		return errors.New("listener already started")
	}
	s.state = connectors.ConnectionStateConnecting
	s.mu.Unlock()

	s.publishConnStatus(connectors.ConnectionStateConnecting, nil)
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(connectors.ConnectionStateDisconnected)
		s.publishConnStatus(connectors.ConnectionStateDisconnected, err)
		s.logger.Error("transport connect failed", "error", err)

		return fmt.Errorf("connect transport: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.state = connectors.ConnectionStateConnected
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.publishConnStatus(connectors.ConnectionStateConnected, nil)
	go s.runReader(runCtx, done)

	return nil
}

// Stop ends the session and waits for the reader to finish. Calling it
// again, or on a never-started service, is a no-op; the disconnected
// status event is published exactly once per session.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	_ = s.transport.Close()
	<-done
}

func (s *Service) State() connectors.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// LastHeartbeat reports when the box last confirmed liveness. The zero
// time means no heartbeat was seen this session.
func (s *Service) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastHeartbeat
}

// Send encodes one command and writes it to the box. Concurrent senders
// are serialized so command frames never interleave on the wire.
func (s *Service) Send(ctx context.Context, cmd Command) error {
	if cmd.Name() == "" {
		return errors.New("command name is required")
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.transport.WriteFrame(writeCtx, payload); err != nil {
		s.logger.Warn("command send failed", "cmd", cmd.Name(), "error", err)

		return fmt.Errorf("send command %q: %w", cmd.Name(), err)
	}

	s.bus.Publish(connectors.TopicRawLineOut, connectors.RawLine{Text: string(payload), Len: len(payload)})
	s.logger.Debug("command sent", "cmd", cmd.Name())

	return nil
}

func (s *Service) runReader(ctx context.Context, done chan struct{}) {
	defer close(done)

	var reason error
	consecutive := 0
	for {
		if ctx.Err() != nil {
			break
		}

		payload, err := s.transport.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("box closed the connection")
				reason = err

				break
			}
			consecutive++
			s.logger.Warn("read frame failed", "error", err, "consecutive", consecutive)
			if consecutive >= maxConsecutiveReadErrors {
				reason = err

				break
			}

			continue
		}
		consecutive = 0

		s.bus.Publish(connectors.TopicRawLineIn, connectors.RawLine{Text: string(payload), Len: len(payload)})
		msg, err := DecodeMessage(payload)
		if err != nil {
			s.logger.Warn("decode frame failed", "error", err)

			continue
		}
		s.publishMessage(msg)
	}

	_ = s.transport.Close()
	s.setState(connectors.ConnectionStateDisconnected)
	s.publishConnStatus(connectors.ConnectionStateDisconnected, reason)
}

func (s *Service) publishMessage(msg Message) {
	switch msg.Kind {
	case KindLiveData:
		s.bus.Publish(connectors.TopicLiveData, *msg.LiveData)
	case KindStatus:
		s.bus.Publish(connectors.TopicBoxStatus, *msg.Status)
	case KindScriptList:
		s.bus.Publish(connectors.TopicScriptList, *msg.ScriptList)
	case KindError:
		s.logger.Warn("box reported error", "message", msg.Error.Message)
		s.bus.Publish(connectors.TopicBoxError, *msg.Error)
	case KindCommandResponse:
		s.bus.Publish(connectors.TopicCommandResponse, *msg.CommandResponse)
	case KindConnectionInfo:
		s.logger.Info("box greeting", "version", msg.ConnectionInfo.Version)
		s.bus.Publish(connectors.TopicConnectionInfo, *msg.ConnectionInfo)
	case KindHeartbeat:
		s.mu.Lock()
		s.lastHeartbeat = time.Now()
		s.mu.Unlock()
		s.bus.Publish(connectors.TopicHeartbeat, *msg.Heartbeat)
	case KindUnknown:
		s.logger.Debug("unclassified frame", "type", msg.Unknown.Type)
		s.bus.Publish(connectors.TopicUnknown, *msg.Unknown)
	}
}

func (s *Service) setState(state connectors.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Service) publishConnStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: s.transport.Name(),
		Timestamp:     time.Now(),
	}
	if resolver, ok := s.transport.(transport.StatusTargetResolver); ok {
		status.Target = resolver.StatusTarget()
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(connectors.TopicConnStatus, status)
}
