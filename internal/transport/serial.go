package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	defaultSerialReadTimeout = 300 * time.Millisecond
	serialChunkSize          = 1024
)

// SerialTransport exchanges newline-delimited JSON frames with a box
// attached over USB serial.
type SerialTransport struct {
	portName string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	reader  *LineReader
	writeMu sync.Mutex
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) SetConfig(portName string, baudRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portName = portName
	t.baudRate = baudRate
}

func (t *SerialTransport) PortName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.portName
}

func (t *SerialTransport) BaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baudRate
}

func (t *SerialTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.portName == "" {
		return ""
	}

	return fmt.Sprintf("%s@%d", t.portName, t.baudRate)
}

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.portName == "" {
		return &TransportError{Transport: "serial", Op: "connect", Err: errors.New("port is empty")}
	}
	if t.baudRate <= 0 {
		return &TransportError{Transport: "serial", Op: "connect", Err: fmt.Errorf("invalid baud rate: %d", t.baudRate)}
	}

	port, err := serial.Open(t.portName, &serial.Mode{BaudRate: t.baudRate})
	if err != nil {
		return &TransportError{Transport: "serial", Op: "open", Err: fmt.Errorf("port %q: %w", t.portName, err)}
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()
		return &TransportError{Transport: "serial", Op: "set read timeout", Err: err}
	}
	t.port = port
	t.reader = &LineReader{}

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.reader = nil
	return err
}

func (t *SerialTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	port, reader, err := t.currentPort()
	if err != nil {
		return nil, err
	}

	line, err := readLine(ctx, reader, serialChunkReader(port))
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (t *SerialTransport) WriteFrame(ctx context.Context, payload []byte) error {
	port, _, err := t.currentPort()
	if err != nil {
		return err
	}

	frame, err := encodeLine(payload)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFull(ctx, port, frame); err != nil {
		return &TransportError{Transport: "serial", Op: "write frame", Err: err}
	}
	return nil
}

func (t *SerialTransport) currentPort() (serial.Port, *LineReader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, nil, ErrNotConnected
	}
	return t.port, t.reader, nil
}

// serialChunkReader reads whatever bytes are available within the port
// read timeout. A timed-out read returns zero bytes without an error.
func serialChunkReader(port serial.Port) readChunkFunc {
	return func(_ context.Context) ([]byte, error) {
		buf := make([]byte, serialChunkSize)
		n, err := port.Read(buf)
		if err != nil {
			return nil, &TransportError{Transport: "serial", Op: "read", Err: err}
		}
		if n == 0 {
			return nil, nil
		}

		return buf[:n], nil
	}
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}
	return nil
}
