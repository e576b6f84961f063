package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	defaultUDPPort = 8081

	// udpChunkSize fits the largest datagram the box firmware emits with
	// headroom.
	udpChunkSize = 2048
)

// UDPTransport exchanges newline-delimited JSON frames with the box command
// port over a connected UDP socket. Stream datagrams the box pushes back
// arrive on the same socket. A datagram without a trailing terminator is
// still one complete frame, the datagram boundary closes it.
type UDPTransport struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	reader  *LineReader
	writeMu sync.Mutex
}

func NewUDPTransport(host string, port int) *UDPTransport {
	if port == 0 {
		port = defaultUDPPort
	}

	return &UDPTransport{host: host, port: port}
}

func (t *UDPTransport) Name() string {
	return "udp"
}

func (t *UDPTransport) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.host
}

func (t *UDPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
}

func (t *UDPTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

// LocalAddr reports the socket's local IP and port once connected. The
// stream start command passes these to the box as the datagram target.
func (t *UDPTransport) LocalAddr() (string, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return "", 0, false
	}
	addr, ok := t.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", 0, false
	}

	return addr.IP.String(), addr.Port, true
}

func (t *UDPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := ""
	if t.host != "" {
		target = net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
	}
	logger := transportLogger("udp", "target", target)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}

	if t.host == "" {
		logger.Warn("connect failed: host is empty")

		return &TransportError{Transport: "udp", Op: "connect", Err: errors.New("host is empty")}
	}

	dialer := net.Dialer{Timeout: 6 * time.Second}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "udp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return &TransportError{Transport: "udp", Op: "dial", Err: err}
	}

	// The box ignores empty datagrams, this only verifies the socket can
	// send toward the target.
	if _, err := conn.Write(nil); err != nil {
		_ = conn.Close()
		logger.Warn("connect failed: probe write", "error", err)

		return &TransportError{Transport: "udp", Op: "probe", Err: err}
	}

	t.conn = conn
	t.reader = &LineReader{}
	logger.Info("connected", "local", conn.LocalAddr().String())

	return nil
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := ""
	if t.host != "" {
		target = net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
	}
	logger := transportLogger("udp", "target", target)

	if t.conn == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return err
}

func (t *UDPTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	logger := transportLogger("udp")
	conn, reader, err := t.currentConn()
	if err != nil {
		logger.Debug("read frame failed: not connected", "error", err)

		return nil, err
	}

	line, err := readLine(ctx, reader, datagramChunkReader(conn))
	if err != nil {
		logger.Debug("read frame failed", "error", err)

		return nil, err
	}
	logger.Debug("read frame", "len", len(line))

	return line, nil
}

func (t *UDPTransport) WriteFrame(ctx context.Context, payload []byte) error {
	logger := transportLogger("udp")
	conn, _, err := t.currentConn()
	if err != nil {
		logger.Debug("write frame failed: not connected", "error", err)

		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}

	frame, err := encodeLine(payload)
	if err != nil {
		logger.Warn("encode frame failed", "payload_len", len(payload), "error", err)

		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		logger.Warn("write frame failed", "payload_len", len(payload), "error", err)

		return &TransportError{Transport: "udp", Op: "write frame", Err: err}
	}
	logger.Debug("write frame", "payload_len", len(payload))

	return nil
}

func (t *UDPTransport) currentConn() (net.Conn, *LineReader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, nil, ErrNotConnected
	}

	return t.conn, t.reader, nil
}

// datagramChunkReader reads one datagram per call and terminates it when
// the sender did not, so the datagram boundary always ends a frame.
func datagramChunkReader(conn net.Conn) readChunkFunc {
	return func(ctx context.Context) ([]byte, error) {
		deadline := time.Now().Add(readPollInterval)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = conn.SetReadDeadline(deadline)

		buf := make([]byte, udpChunkSize)
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if chunk[len(chunk)-1] != '\n' {
				chunk = append(chunk, '\n')
			}

			return chunk, nil
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, nil
			}

			return nil, &TransportError{Transport: "udp", Op: "read", Err: err}
		}

		return nil, nil
	}
}
