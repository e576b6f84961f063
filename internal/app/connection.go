package app

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/jrbox/powergo/internal/config"
	"github.com/jrbox/powergo/internal/transport"
)

// NewTransportForConnection builds the connector the config selects. Each
// live session constructs its own transport.
func NewTransportForConnection(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorTCP:
		return transport.NewTCPTransport(cfg.Host, cfg.TCPPort), nil
	case config.ConnectorUDP:
		return transport.NewUDPTransport(cfg.Host, cfg.UDPPort), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}

func TransportNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorTCP:
		return "tcp"
	case config.ConnectorUDP:
		return "udp"
	case config.ConnectorSerial:
		return "serial"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}
		return "unknown"
	}
}

// ConnectionTarget renders the configured endpoint for status lines and
// history rows.
func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorTCP:
		return hostPort(cfg.Host, cfg.TCPPort, config.DefaultTCPPort)
	case config.ConnectorUDP:
		return hostPort(cfg.Host, cfg.UDPPort, config.DefaultUDPPort)
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort)
	default:
		return ""
	}
}

func hostPort(host string, port, fallback int) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if port <= 0 {
		port = fallback
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}
