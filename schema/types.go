// Package schema defines the data model shared across the session
// communication core: transport descriptors, session state, triggers, and
// the events the dispatcher broadcasts. Types here carry no behavior beyond
// normalization and are safe to pass across package boundaries.
package schema

import "time"

// SessionID identifies a live session. Opaque and globally unique for the
// lifetime of the process.
type SessionID string

// TransportKind is a tagged variant describing how a session reaches its
// remote endpoint. Exactly one variant field is meaningful per value; the
// Kind field says which.
type TransportKind struct {
	Kind   TransportKindTag
	Serial SerialParams
	TCP    TCPParams
	Telnet TelnetParams
	SSH    SSHParams
	BLE    BLEParams
}

// TransportKindTag discriminates TransportKind's variant.
type TransportKindTag string

const (
	TransportSerial TransportKindTag = "serial"
	TransportTCP    TransportKindTag = "tcp"
	TransportTelnet TransportKindTag = "telnet"
	TransportSSH    TransportKindTag = "ssh"
	TransportBLE    TransportKindTag = "ble"
)

// Parity enumerates serial parity modes.
type Parity string

const (
	ParityNone  Parity = "none"
	ParityOdd   Parity = "odd"
	ParityEven  Parity = "even"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// FlowControl enumerates serial flow-control modes.
type FlowControl string

const (
	FlowNone    FlowControl = "none"
	FlowRtsCts  FlowControl = "rts_cts"
	FlowXonXoff FlowControl = "xon_xoff"
)

// SerialParams configures a serial transport.
type SerialParams struct {
	Port           string
	Baud           int
	DataBits       int // 5..8
	StopBits       float64 // 1, 1.5, 2
	Parity         Parity
	Flow           FlowControl
	AutoReconnect  bool
}

// TCPParams configures a raw TCP transport.
type TCPParams struct {
	Host              string
	Port              int
	ConnectTimeout    time.Duration
	KeepaliveInterval time.Duration // zero disables keepalive
	NoDelay           bool
}

// TelnetParams configures a telnet transport (TCP plus IAC negotiation).
type TelnetParams struct {
	Host         string
	Port         int
	TerminalType string
	WindowWidth  int
	WindowHeight int
	WantEcho     bool
	WantBinary   bool
}

// SSHParams configures an opaque SSH byte-channel transport. Authentication
// and transport security are delegated entirely to golang.org/x/crypto/ssh;
// the core never touches key material directly.
type SSHParams struct {
	Host           string
	Port           int
	User           string
	PrivateKeyPEM  []byte
	Password       string
	ConnectTimeout time.Duration
	Command        string // remote command to exec; empty requests a PTY shell
}

// BLEParams configures a BLE GATT transport (e.g. Nordic UART Service).
type BLEParams struct {
	DeviceID  string
	Service   string
	TxCharUUID string
	RxCharUUID string
}

// TransportCapabilities is the immutable, per-instance capability
// declaration a transport driver returns. It never changes after
// construction.
type TransportCapabilities struct {
	CanSend              bool
	CanReceive           bool
	SupportsFlowControl  bool
	SupportsModemLines   bool
	SupportsBreak        bool
	SupportsFileTransfer bool
	MaxBaud              int // 0 means not applicable
}

// TransportState is the lifecycle state of a transport driver.
type TransportState string

const (
	TransportDisconnected TransportState = "disconnected"
	TransportConnecting   TransportState = "connecting"
	TransportConnected    TransportState = "connected"
	TransportClosing      TransportState = "closing"
	TransportFailed       TransportState = "failed"
)

// TransportStats holds monotonically increasing byte/frame counters.
type TransportStats struct {
	TxBytes   uint64
	RxBytes   uint64
	TxFrames  uint64
	RxFrames  uint64
	Errors    uint64
	StartTime time.Time
}

// Uptime returns the duration since StartTime, or zero if unset.
func (s TransportStats) Uptime(now time.Time) time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return now.Sub(s.StartTime)
}

// Direction tags a Packet as inbound or outbound.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Packet is an immutable, decoded protocol unit published on the event
// broadcast after a framing/protocol decoder recognizes it.
type Packet struct {
	Timestamp    time.Time
	Direction    Direction
	Data         []byte
	ProtocolName string
	Metadata     map[string]any
}

// SessionState is the coordinator-level lifecycle state (distinct from
// TransportState, which belongs to the underlying driver).
type SessionState string

const (
	SessionCreated      SessionState = "created"
	SessionConnecting   SessionState = "connecting"
	SessionConnected    SessionState = "connected"
	SessionDisconnecting SessionState = "disconnecting"
	SessionDisconnected SessionState = "disconnected"
	SessionFailed       SessionState = "failed"
	SessionReconnecting SessionState = "reconnecting"
)
