package transport

import (
	"context"
	"sync"
	"time"

	"pkt.systems/termbridge/schema"
)

var loopbackCapabilities = schema.TransportCapabilities{
	CanSend:              true,
	CanReceive:           true,
	SupportsFlowControl:  true,
	SupportsModemLines:   true,
	SupportsBreak:        true,
	SupportsFileTransfer: false,
}

// Loopback is a scripted, in-memory Transport used by dispatcher and
// session tests: bytes handed to Inject surface from Receive, and bytes
// handed to Send land in Sent for a test to assert on. It carries no
// network or serial dependency so tests run without any real endpoint.
type Loopback struct {
	mu      sync.Mutex
	state   schema.TransportState
	inbound chan []byte
	sent    [][]byte

	modemMu    sync.Mutex
	modemLines map[ModemLine]bool
	breaks     int

	statsMu sync.Mutex
	stats   schema.TransportStats
}

// NewLoopback constructs a Loopback transport in the disconnected state.
func NewLoopback() *Loopback {
	return &Loopback{
		state:      schema.TransportDisconnected,
		inbound:    make(chan []byte, 256),
		modemLines: make(map[ModemLine]bool),
	}
}

func (l *Loopback) Capabilities() schema.TransportCapabilities { return loopbackCapabilities }

func (l *Loopback) State() schema.TransportState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loopback) Stats() schema.TransportStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Loopback) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = schema.TransportConnected
	l.statsMu.Lock()
	l.stats = schema.TransportStats{StartTime: time.Now()}
	l.statsMu.Unlock()
	return nil
}

func (l *Loopback) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = schema.TransportDisconnected
	return nil
}

func (l *Loopback) Send(ctx context.Context, data []byte) (int, error) {
	l.mu.Lock()
	if l.state != schema.TransportConnected {
		l.mu.Unlock()
		return 0, newError(ErrClosed, "not connected")
	}
	cp := append([]byte(nil), data...)
	l.sent = append(l.sent, cp)
	l.mu.Unlock()
	l.statsMu.Lock()
	l.stats.TxBytes += uint64(len(data))
	l.stats.TxFrames++
	l.statsMu.Unlock()
	return len(data), nil
}

func (l *Loopback) Receive(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-l.inbound:
		if !ok {
			return nil, newError(ErrClosed, "not connected")
		}
		l.statsMu.Lock()
		l.stats.RxBytes += uint64(len(chunk))
		l.stats.RxFrames++
		l.statsMu.Unlock()
		return chunk, nil
	case <-ctx.Done():
		return nil, newError(ErrCancelled, "receive cancelled")
	}
}

func (l *Loopback) SetModemLine(line ModemLine, state bool) error {
	l.modemMu.Lock()
	defer l.modemMu.Unlock()
	l.modemLines[line] = state
	return nil
}

func (l *Loopback) SendBreak(ctx context.Context, duration time.Duration) error {
	l.modemMu.Lock()
	defer l.modemMu.Unlock()
	l.breaks++
	return nil
}

// Inject makes data available to the next Receive call.
func (l *Loopback) Inject(data []byte) {
	l.inbound <- append([]byte(nil), data...)
}

// Sent returns every payload passed to Send so far, in order.
func (l *Loopback) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.sent))
	copy(out, l.sent)
	return out
}

// ModemLine reports the last state SetModemLine recorded for line.
func (l *Loopback) ModemLine(line ModemLine) bool {
	l.modemMu.Lock()
	defer l.modemMu.Unlock()
	return l.modemLines[line]
}

// Breaks reports how many times SendBreak was called.
func (l *Loopback) Breaks() int {
	l.modemMu.Lock()
	defer l.modemMu.Unlock()
	return l.breaks
}
