package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConnected is returned by frame operations on a transport whose
// Connect has not succeeded or whose connection was closed.
var ErrNotConnected = errors.New("transport is not connected")

// TransportError wraps a connect, read or write failure with the
// transport and operation it came from.
type TransportError struct {
	Transport string
	Op        string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport moves newline-delimited frames between the client and the box.
// ReadFrame returns exactly one frame body without its line terminator.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}
