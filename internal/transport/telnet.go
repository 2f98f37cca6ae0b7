package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"pkt.systems/termbridge/schema"
)

var telnetCapabilities = schema.TransportCapabilities{
	CanSend:              true,
	CanReceive:           true,
	SupportsFlowControl:  false,
	SupportsModemLines:   false,
	SupportsBreak:        false,
	SupportsFileTransfer: false,
}

// Telnet protocol constants, RFC 854.
const (
	iacByte  byte = 255
	dontByte byte = 254
	doByte   byte = 253
	wontByte byte = 252
	willByte byte = 251
	sbByte   byte = 250
	seByte   byte = 240

	optBinary byte = 0  // RFC 856
	optEcho   byte = 1  // RFC 857
	optSGA    byte = 3  // RFC 858
	optStatus byte = 5
	optTTYPE  byte = 24 // RFC 1091
	optNAWS   byte = 31 // RFC 1073

	ttypeIS   byte = 0
	ttypeSend byte = 1
)

// Telnet is a driver over TCP with inline IAC option negotiation (RFC
// 854), NAWS window-size reporting (RFC 1073), TTYPE announcement (RFC
// 1091), and BINARY/SGA/ECHO handling (RFC 856/858/857).
type Telnet struct {
	params schema.TelnetParams

	mu      sync.Mutex
	conn    net.Conn
	state   schema.TransportState
	pending []byte // bytes of an IAC sequence split across reads

	statsMu sync.Mutex
	stats   schema.TransportStats
}

// NewTelnet constructs a Telnet driver. It performs no I/O until Connect.
func NewTelnet(params schema.TelnetParams) *Telnet {
	return &Telnet{params: params, state: schema.TransportDisconnected}
}

func (t *Telnet) Capabilities() schema.TransportCapabilities { return telnetCapabilities }

func (t *Telnet) State() schema.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Telnet) Stats() schema.TransportStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *Telnet) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return newError(ErrClosed, "already connected")
	}
	t.state = schema.TransportConnecting

	dialCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	addr := net.JoinHostPort(t.params.Host, strconv.Itoa(t.params.Port))
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		t.state = schema.TransportFailed
		return classifyDialErr(err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	t.pending = nil
	t.state = schema.TransportConnected
	t.statsMu.Lock()
	t.stats = schema.TransportStats{StartTime: time.Now()}
	t.statsMu.Unlock()
	return nil
}

func (t *Telnet) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		t.state = schema.TransportDisconnected
		return nil
	}
	t.state = schema.TransportClosing
	err := t.conn.Close()
	t.conn = nil
	t.pending = nil
	t.state = schema.TransportDisconnected
	if err != nil {
		return newError(ErrIO, "%v", err)
	}
	return nil
}

// Send escapes any literal IAC byte in data (255 -> 255 255) before
// writing, per RFC 854.
func (t *Telnet) Send(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, newError(ErrClosed, "not connected")
	}
	escaped := make([]byte, 0, len(data))
	for _, b := range data {
		if b == iacByte {
			escaped = append(escaped, iacByte, iacByte)
		} else {
			escaped = append(escaped, b)
		}
	}
	if _, err := conn.Write(escaped); err != nil {
		return 0, newError(ErrIO, "%v", err)
	}
	t.statsMu.Lock()
	t.stats.TxBytes += uint64(len(data))
	t.stats.TxFrames++
	t.statsMu.Unlock()
	return len(data), nil
}

func (t *Telnet) Receive(ctx context.Context) ([]byte, error) {
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
		out := t.processIncoming(conn, buf[:n])
		if len(out) == 0 {
			continue
		}
		t.statsMu.Lock()
		t.stats.RxBytes += uint64(len(out))
		t.stats.RxFrames++
		t.statsMu.Unlock()
		return out, nil
	}
}

// processIncoming strips and answers IAC negotiation inline, returning the
// plain application bytes. Sequences split across reads are held in
// t.pending until the rest arrives.
func (t *Telnet) processIncoming(conn net.Conn, raw []byte) []byte {
	if len(t.pending) > 0 {
		raw = append(t.pending, raw...)
		t.pending = nil
	}
	out := make([]byte, 0, len(raw))
	i := 0
	for i < len(raw) {
		if raw[i] != iacByte {
			out = append(out, raw[i])
			i++
			continue
		}
		if i+1 >= len(raw) {
			t.pending = append(t.pending, raw[i:]...)
			break
		}
		switch raw[i+1] {
		case iacByte:
			out = append(out, iacByte)
			i += 2
		case doByte, dontByte, willByte, wontByte:
			if i+2 >= len(raw) {
				t.pending = append(t.pending, raw[i:]...)
				i = len(raw)
				break
			}
			t.negotiate(conn, raw[i+1], raw[i+2])
			i += 3
		case sbByte:
			end := indexSE(raw, i+2)
			if end < 0 {
				t.pending = append(t.pending, raw[i:]...)
				i = len(raw)
				break
			}
			t.handleSubnegotiation(conn, raw[i+2:end])
			i = end + 2
		default:
			i += 2
		}
	}
	return out
}

func indexSE(raw []byte, from int) int {
	for j := from; j+1 < len(raw); j++ {
		if raw[j] == iacByte && raw[j+1] == seByte {
			return j
		}
	}
	return -1
}

func (t *Telnet) negotiate(conn net.Conn, command, option byte) {
	var response []byte
	switch command {
	case doByte:
		switch option {
		case optTTYPE, optNAWS, optSGA, optStatus:
			response = []byte{iacByte, willByte, option}
		case optBinary:
			if t.params.WantBinary {
				response = []byte{iacByte, willByte, option}
			} else {
				response = []byte{iacByte, wontByte, option}
			}
		default:
			response = []byte{iacByte, wontByte, option}
		}
	case willByte:
		switch option {
		case optEcho:
			if t.params.WantEcho {
				response = []byte{iacByte, doByte, option}
			} else {
				response = []byte{iacByte, dontByte, option}
			}
		case optSGA, optStatus:
			response = []byte{iacByte, doByte, option}
		case optBinary:
			if t.params.WantBinary {
				response = []byte{iacByte, doByte, option}
			} else {
				response = []byte{iacByte, dontByte, option}
			}
		default:
			response = []byte{iacByte, dontByte, option}
		}
	default:
		return
	}
	conn.Write(response)
	if command == doByte && option == optNAWS {
		conn.Write(t.nawsSubnegotiation())
	}
}

func (t *Telnet) handleSubnegotiation(conn net.Conn, body []byte) {
	if len(body) < 2 || body[0] != optTTYPE || body[1] != ttypeSend {
		return
	}
	termType := t.params.TerminalType
	if termType == "" {
		termType = "xterm"
	}
	resp := []byte{iacByte, sbByte, optTTYPE, ttypeIS}
	resp = append(resp, []byte(termType)...)
	resp = append(resp, iacByte, seByte)
	conn.Write(resp)
}

func (t *Telnet) nawsSubnegotiation() []byte {
	w, h := t.params.WindowWidth, t.params.WindowHeight
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	dims := make([]byte, 4)
	binary.BigEndian.PutUint16(dims[0:2], uint16(w))
	binary.BigEndian.PutUint16(dims[2:4], uint16(h))
	resp := []byte{iacByte, sbByte, optNAWS}
	resp = append(resp, escapeIAC(dims)...)
	resp = append(resp, iacByte, seByte)
	return resp
}

// escapeIAC doubles any literal 0xFF byte inside a subnegotiation payload,
// since 255 is a valid NAWS dimension byte but also the IAC marker.
func escapeIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b == iacByte {
			out = append(out, iacByte, iacByte)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func (t *Telnet) SetModemLine(line ModemLine, state bool) error {
	return CheckModemLine(t.Capabilities())
}

func (t *Telnet) SendBreak(ctx context.Context, duration time.Duration) error {
	return CheckBreak(t.Capabilities())
}
