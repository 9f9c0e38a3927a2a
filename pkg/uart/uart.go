// Package uart opens the byte stream to the peer: a local serial port,
// or a remote one bridged over websocket.
package uart

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Config defines how to open a port.
type Config struct {
	Name string
	Baud int
	// ReadTimeout bounds a single read of a serial port so readers can
	// observe cancellation.
	ReadTimeout time.Duration
	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
		DialTimeout: 10 * time.Second,
	}
}

// Open opens a ws:// or wss:// URL as websocket bridge and anything
// else as a serial port device.
func Open(config Config) (io.ReadWriteCloser, error) {
	if strings.HasPrefix(config.Name, "ws://") || strings.HasPrefix(config.Name, "wss://") {
		port, err := DialWebSocket(config.Name, config.DialTimeout)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
	return OpenSerial(config.Name, config.Baud, config.ReadTimeout)
}

// OpenSerial opens a serial port 8N1.
func OpenSerial(name string, baud int, readTimeout time.Duration) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
	}
	return port, nil
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// WebSocketPort is a byte stream over binary websocket messages.
type WebSocketPort struct {
	conn      *websocket.Conn
	writeLock sync.Mutex
	pending   []byte
}

// DialWebSocket connects to a websocket serial bridge.
func DialWebSocket(rawURL string, timeout time.Duration) (*WebSocketPort, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return NewWebSocketPort(conn), nil
}

// NewWebSocketPort wraps an established connection.
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	return &WebSocketPort{conn: conn}
}

// Read implements io.Reader. Message boundaries are not preserved.
func (p *WebSocketPort) Read(b []byte) (int, error) {
	for len(p.pending) == 0 {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		p.pending = msg
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write implements io.Writer, one message per call.
func (p *WebSocketPort) Write(b []byte) (int, error) {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	if err := p.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close implements io.Closer.
func (p *WebSocketPort) Close() error {
	return p.conn.Close()
}
