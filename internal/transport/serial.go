package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"

	"pkt.systems/termbridge/schema"
)

var serialCapabilities = schema.TransportCapabilities{
	CanSend:              true,
	CanReceive:           true,
	SupportsFlowControl:  true,
	SupportsModemLines:   true,
	SupportsBreak:        true,
	SupportsFileTransfer: false,
	MaxBaud:              3_000_000,
}

// readTimeout bounds each blocking Read call so Receive can observe
// context cancellation without a dedicated interrupt mechanism.
const readTimeout = 100 * time.Millisecond

// Serial is a driver over a local serial port (RS-232, RS-485, USB-serial).
type Serial struct {
	params schema.SerialParams

	mu    sync.Mutex
	port  serial.Port
	state schema.TransportState

	statsMu sync.Mutex
	stats   schema.TransportStats
}

// NewSerial constructs a Serial driver. It performs no I/O until Connect.
func NewSerial(params schema.SerialParams) *Serial {
	return &Serial{params: params, state: schema.TransportDisconnected}
}

func (s *Serial) Capabilities() schema.TransportCapabilities { return serialCapabilities }

func (s *Serial) State() schema.TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Serial) Stats() schema.TransportStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Serial) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return newError(ErrClosed, "already connected")
	}
	s.state = schema.TransportConnecting

	mode := &serial.Mode{
		BaudRate: s.params.Baud,
		DataBits: clampDataBits(s.params.DataBits),
		Parity:   toSerialParity(s.params.Parity),
		StopBits: toSerialStopBits(s.params.StopBits),
	}
	port, err := serial.Open(s.params.Port, mode)
	if err != nil {
		s.state = schema.TransportFailed
		return classifySerialErr(s.params.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		s.state = schema.TransportFailed
		return newError(ErrIO, "set read timeout: %v", err)
	}

	s.port = port
	s.state = schema.TransportConnected
	s.statsMu.Lock()
	s.stats = schema.TransportStats{StartTime: time.Now()}
	s.statsMu.Unlock()
	return nil
}

func (s *Serial) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		s.state = schema.TransportDisconnected
		return nil
	}
	s.state = schema.TransportClosing
	err := s.port.Close()
	s.port = nil
	s.state = schema.TransportDisconnected
	if err != nil {
		return newError(ErrIO, "%v", err)
	}
	return nil
}

func (s *Serial) Send(ctx context.Context, data []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, newError(ErrClosed, "not connected")
	}
	n, err := port.Write(data)
	if err != nil {
		return n, newError(ErrIO, "%v", err)
	}
	s.statsMu.Lock()
	s.stats.TxBytes += uint64(n)
	s.stats.TxFrames++
	s.statsMu.Unlock()
	return n, nil
}

// Receive polls Read in readTimeout slices so a cancelled ctx is observed
// promptly instead of blocking indefinitely inside the OS read syscall.
func (s *Serial) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil, newError(ErrCancelled, "receive cancelled")
		default:
		}
		s.mu.Lock()
		port := s.port
		s.mu.Unlock()
		if port == nil {
			return nil, newError(ErrClosed, "not connected")
		}
		n, err := port.Read(buf)
		if err != nil {
			return nil, newError(ErrIO, "%v", err)
		}
		if n == 0 {
			continue
		}
		out := append([]byte(nil), buf[:n]...)
		s.statsMu.Lock()
		s.stats.RxBytes += uint64(n)
		s.stats.RxFrames++
		s.statsMu.Unlock()
		return out, nil
	}
}

func (s *Serial) SetModemLine(line ModemLine, state bool) error {
	if err := CheckModemLine(s.Capabilities()); err != nil {
		return err
	}
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return newError(ErrClosed, "not connected")
	}
	switch line {
	case ModemLineDTR:
		if err := port.SetDTR(state); err != nil {
			return newError(ErrIO, "%v", err)
		}
	case ModemLineRTS:
		if err := port.SetRTS(state); err != nil {
			return newError(ErrIO, "%v", err)
		}
	default:
		return newError(ErrUnsupported, "unknown modem line %q", line)
	}
	return nil
}

func (s *Serial) SendBreak(ctx context.Context, duration time.Duration) error {
	if err := CheckBreak(s.Capabilities()); err != nil {
		return err
	}
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return newError(ErrClosed, "not connected")
	}
	if duration <= 0 {
		duration = 250 * time.Millisecond
	}
	if err := port.Break(duration); err != nil {
		return newError(ErrIO, "%v", err)
	}
	return nil
}

// ListSerialPorts enumerates local serial devices for a "doctor"-style
// diagnostic command; it does not open or claim any of them.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, newError(ErrIO, "%v", err)
	}
	return ports, nil
}

func clampDataBits(n int) int {
	if n < 5 || n > 8 {
		return 8
	}
	return n
}

func toSerialParity(p schema.Parity) serial.Parity {
	switch p {
	case schema.ParityOdd:
		return serial.OddParity
	case schema.ParityEven:
		return serial.EvenParity
	case schema.ParityMark:
		return serial.MarkParity
	case schema.ParitySpace:
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

func toSerialStopBits(n float64) serial.StopBits {
	switch n {
	case 2:
		return serial.TwoStopBits
	case 1.5:
		return serial.OnePointFiveStopBits
	default:
		return serial.OneStopBit
	}
}

func classifySerialErr(port string, err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		switch perr.Code() {
		case serial.PortNotFound:
			return newError(ErrConnectionRefused, "port not found: %s", port)
		case serial.PermissionDenied:
			return newError(ErrUnavailableResource, "permission denied: %s", port)
		}
	}
	return newError(ErrIO, "%v", err)
}
