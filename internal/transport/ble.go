package transport

import (
	"context"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"pkt.systems/termbridge/schema"
)

var bleCapabilities = schema.TransportCapabilities{
	CanSend:              true,
	CanReceive:           true,
	SupportsFlowControl:  false,
	SupportsModemLines:   false,
	SupportsBreak:        false,
	SupportsFileTransfer: false,
}

// defaultATTMTU is the GATT default payload size (23-byte ATT_MTU minus a
// 3-byte write header). Send always chunks to this size; a larger
// negotiated MTU is not queried.
const defaultATTMTU = 20

// rxQueueDepth bounds the notification-to-Receive relay buffer; BLE
// notifications arrive on the adapter's own goroutine and must never block
// it, so a full queue drops the oldest pending chunk.
const rxQueueDepth = 64

// BLE is a driver over a GATT central connection, e.g. Nordic UART
// Service: writes go to the peripheral's RX characteristic, inbound bytes
// arrive as notifications on its TX characteristic. Ordering is only
// guaranteed within a single characteristic; the two directions are
// independent.
type BLE struct {
	params schema.BLEParams

	mu     sync.Mutex
	device *bluetooth.Device
	rxChar bluetooth.DeviceCharacteristic // peripheral's RX: we write here
	txChar bluetooth.DeviceCharacteristic // peripheral's TX: we notify from here
	state  schema.TransportState
	mtu    int
	rxCh   chan []byte

	statsMu sync.Mutex
	stats   schema.TransportStats
}

// NewBLE constructs a BLE driver. It performs no I/O until Connect.
func NewBLE(params schema.BLEParams) *BLE {
	return &BLE{
		params: params,
		state:  schema.TransportDisconnected,
		mtu:    defaultATTMTU,
		rxCh:   make(chan []byte, rxQueueDepth),
	}
}

func (b *BLE) Capabilities() schema.TransportCapabilities { return bleCapabilities }

func (b *BLE) State() schema.TransportState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BLE) Stats() schema.TransportStats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

func (b *BLE) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device != nil {
		return newError(ErrClosed, "already connected")
	}
	b.state = schema.TransportConnecting

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		b.state = schema.TransportFailed
		return newError(ErrIO, "enable adapter: %v", err)
	}

	mac, err := bluetooth.ParseMAC(b.params.DeviceID)
	if err != nil {
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "invalid device id %q: %v", b.params.DeviceID, err)
	}
	device, err := adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, bluetooth.ConnectionParams{})
	if err != nil {
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "%v", err)
	}

	serviceUUID, err := bluetooth.ParseUUID(b.params.Service)
	if err != nil {
		device.Disconnect()
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "invalid service uuid %q: %v", b.params.Service, err)
	}
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "discover service %q: %v", b.params.Service, err)
	}

	rxUUID, err := bluetooth.ParseUUID(b.params.RxCharUUID)
	if err != nil {
		device.Disconnect()
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "invalid rx characteristic uuid: %v", err)
	}
	txUUID, err := bluetooth.ParseUUID(b.params.TxCharUUID)
	if err != nil {
		device.Disconnect()
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "invalid tx characteristic uuid: %v", err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{rxUUID, txUUID})
	if err != nil || len(chars) < 2 {
		device.Disconnect()
		b.state = schema.TransportFailed
		return newError(ErrConnectionRefused, "discover characteristics: %v", err)
	}
	for _, c := range chars {
		switch c.UUID() {
		case rxUUID:
			b.rxChar = c
		case txUUID:
			b.txChar = c
		}
	}

	if err := b.txChar.EnableNotifications(func(buf []byte) {
		chunk := append([]byte(nil), buf...)
		select {
		case b.rxCh <- chunk:
		default:
			select {
			case <-b.rxCh:
			default:
			}
			select {
			case b.rxCh <- chunk:
			default:
			}
		}
	}); err != nil {
		device.Disconnect()
		b.state = schema.TransportFailed
		return newError(ErrIO, "enable notifications: %v", err)
	}

	b.device = &device
	b.state = schema.TransportConnected
	b.statsMu.Lock()
	b.stats = schema.TransportStats{StartTime: time.Now()}
	b.statsMu.Unlock()
	return nil
}

func (b *BLE) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		b.state = schema.TransportDisconnected
		return nil
	}
	b.state = schema.TransportClosing
	err := b.device.Disconnect()
	b.device = nil
	b.state = schema.TransportDisconnected
	if err != nil {
		return newError(ErrIO, "%v", err)
	}
	return nil
}

// Send chunks data to the 20-byte default ATT payload (defaultATTMTU) and
// issues one characteristic write per chunk; it does not use a larger
// negotiated MTU. Per-chunk ordering within a single
// characteristic is the only ordering guarantee BLE offers here.
func (b *BLE) Send(ctx context.Context, data []byte) (int, error) {
	b.mu.Lock()
	device := b.device
	rxChar := b.rxChar
	mtu := b.mtu
	b.mu.Unlock()
	if device == nil {
		return 0, newError(ErrClosed, "not connected")
	}
	sent := 0
	for sent < len(data) {
		end := sent + mtu
		if end > len(data) {
			end = len(data)
		}
		n, err := rxChar.WriteWithoutResponse(data[sent:end])
		if err != nil {
			return sent, newError(ErrIO, "%v", err)
		}
		sent += n
	}
	b.statsMu.Lock()
	b.stats.TxBytes += uint64(sent)
	b.stats.TxFrames++
	b.statsMu.Unlock()
	return sent, nil
}

func (b *BLE) Receive(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-b.rxCh:
		if !ok {
			return nil, newError(ErrClosed, "not connected")
		}
		b.statsMu.Lock()
		b.stats.RxBytes += uint64(len(chunk))
		b.stats.RxFrames++
		b.statsMu.Unlock()
		return chunk, nil
	case <-ctx.Done():
		return nil, newError(ErrCancelled, "receive cancelled")
	}
}

func (b *BLE) SetModemLine(line ModemLine, state bool) error {
	return CheckModemLine(b.Capabilities())
}

func (b *BLE) SendBreak(ctx context.Context, duration time.Duration) error {
	return CheckBreak(b.Capabilities())
}
