package transport

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/termbridge/schema"
)

// ModemLine identifies a serial modem-control line a caller may toggle.
type ModemLine string

const (
	ModemLineDTR ModemLine = "dtr"
	ModemLineRTS ModemLine = "rts"
)

// Transport is the uniform driver contract every backend implements.
// Connect, Disconnect, Send and Receive all accept a context carrying the
// session's cancellation token; a cancelled context aborts the operation,
// leaves the driver in a consistent closed form, and surfaces
// ErrCancelled. SetModemLine and SendBreak return an *Error with
// ErrUnsupported on a backend whose Capabilities() says it cannot perform
// them; a driver that reports a capability it does not honor is a
// conformance bug.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Send blocks until data has been fully accepted by the underlying
	// medium (not necessarily acknowledged by the remote end).
	Send(ctx context.Context, data []byte) (int, error)

	// Receive blocks until at least one byte is available, the transport
	// is closed, or ctx is cancelled. It never returns (nil, nil).
	Receive(ctx context.Context) ([]byte, error)

	SetModemLine(line ModemLine, state bool) error
	SendBreak(ctx context.Context, duration time.Duration) error

	Stats() schema.TransportStats
	State() schema.TransportState

	// Capabilities is fixed for the lifetime of the driver instance; it
	// must not vary with connection state.
	Capabilities() schema.TransportCapabilities
}

// New constructs the driver for kind, wiring its immutable capability
// declaration from Capabilities kind. It performs no I/O; Connect does.
func New(kind schema.TransportKind) (Transport, error) {
	switch kind.Kind {
	case schema.TransportSerial:
		return NewSerial(kind.Serial), nil
	case schema.TransportTCP:
		return NewTCP(kind.TCP), nil
	case schema.TransportTelnet:
		return NewTelnet(kind.Telnet), nil
	case schema.TransportSSH:
		return NewSSH(kind.SSH), nil
	case schema.TransportBLE:
		return NewBLE(kind.BLE), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", kind.Kind)
	}
}
