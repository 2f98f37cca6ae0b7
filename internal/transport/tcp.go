package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"pkt.systems/termbridge/schema"
)

var tcpCapabilities = schema.TransportCapabilities{
	CanSend:              true,
	CanReceive:           true,
	SupportsFlowControl:  false,
	SupportsModemLines:   false,
	SupportsBreak:        false,
	SupportsFileTransfer: false,
}

// defaultConnectTimeout applies when a session config leaves the
// transport's own connect timeout at its zero value.
const defaultConnectTimeout = 10 * time.Second

// TCP is a driver over a raw TCP socket.
type TCP struct {
	params schema.TCPParams

	mu    sync.Mutex
	conn  *net.TCPConn
	state schema.TransportState

	statsMu sync.Mutex
	stats   schema.TransportStats
}

// NewTCP constructs a TCP driver. It performs no I/O until Connect.
func NewTCP(params schema.TCPParams) *TCP {
	return &TCP{params: params, state: schema.TransportDisconnected}
}

func (t *TCP) Capabilities() schema.TransportCapabilities { return tcpCapabilities }

func (t *TCP) State() schema.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *TCP) Stats() schema.TransportStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *TCP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return newError(ErrClosed, "already connected")
	}
	t.state = schema.TransportConnecting

	timeout := t.params.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(t.params.Host, strconv.Itoa(t.params.Port))
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		t.state = schema.TransportFailed
		return classifyDialErr(err)
	}
	tcpConn := conn.(*net.TCPConn)
	if err := tcpConn.SetNoDelay(t.params.NoDelay); err != nil {
		tcpConn.Close()
		t.state = schema.TransportFailed
		return newError(ErrIO, "set nodelay: %v", err)
	}
	if t.params.KeepaliveInterval > 0 {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(t.params.KeepaliveInterval)
	} else {
		tcpConn.SetKeepAlive(false)
	}

	t.conn = tcpConn
	t.state = schema.TransportConnected
	t.statsMu.Lock()
	t.stats = schema.TransportStats{StartTime: time.Now()}
	t.statsMu.Unlock()
	return nil
}

func (t *TCP) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		t.state = schema.TransportDisconnected
		return nil
	}
	t.state = schema.TransportClosing
	err := t.conn.Close()
	t.conn = nil
	t.state = schema.TransportDisconnected
	if err != nil {
		return newError(ErrIO, "%v", err)
	}
	return nil
}

func (t *TCP) Send(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, newError(ErrClosed, "not connected")
	}
	n, err := conn.Write(data)
	if err != nil {
		return n, newError(ErrIO, "%v", err)
	}
	t.statsMu.Lock()
	t.stats.TxBytes += uint64(n)
	t.stats.TxFrames++
	t.statsMu.Unlock()
	return n, nil
}

// Receive polls Read with a short deadline so a cancelled ctx is observed
// without a dedicated interrupter goroutine per connection.
func (t *TCP) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil, newError(ErrCancelled, "receive cancelled")
		default:
		}
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return nil, newError(ErrClosed, "not connected")
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil, newError(ErrClosed, "connection closed by remote")
			}
			return nil, newError(ErrIO, "%v", err)
		}
		if n == 0 {
			continue
		}
		out := append([]byte(nil), buf[:n]...)
		t.statsMu.Lock()
		t.stats.RxBytes += uint64(n)
		t.stats.RxFrames++
		t.statsMu.Unlock()
		return out, nil
	}
}

func (t *TCP) SetModemLine(line ModemLine, state bool) error {
	return CheckModemLine(t.Capabilities())
}

func (t *TCP) SendBreak(ctx context.Context, duration time.Duration) error {
	return CheckBreak(t.Capabilities())
}

func classifyDialErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrTimeout, "%v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrTimeout, "%v", err)
	}
	return newError(ErrConnectionRefused, "%v", err)
}
