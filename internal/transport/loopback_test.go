package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/termbridge/schema"
)

func TestLoopbackSendRecordsPayloads(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Connect(context.Background()))

	n, err := l.Send(context.Background(), []byte("AT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, [][]byte{[]byte("AT\r\n")}, l.Sent())
}

func TestLoopbackReceiveReturnsInjectedBytes(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Connect(context.Background()))
	l.Inject([]byte("OK\r\n"))

	got, err := l.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("OK\r\n"), got)
}

func TestLoopbackReceiveCancelledByContext(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Receive(ctx)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrCancelled, terr.Kind)
}

func TestLoopbackSendBeforeConnectFails(t *testing.T) {
	l := NewLoopback()
	_, err := l.Send(context.Background(), []byte("x"))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrClosed, terr.Kind)
}

func TestLoopbackModemLineAndBreakAreRecorded(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.SetModemLine(ModemLineDTR, true))
	assert.True(t, l.ModemLine(ModemLineDTR))
	assert.False(t, l.ModemLine(ModemLineRTS))

	require.NoError(t, l.SendBreak(context.Background(), 0))
	assert.Equal(t, 1, l.Breaks())
}

func TestLoopbackStatsAccumulate(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Connect(context.Background()))
	l.Send(context.Background(), []byte("abc"))
	l.Inject([]byte("de"))
	l.Receive(context.Background())

	stats := l.Stats()
	assert.Equal(t, uint64(3), stats.TxBytes)
	assert.Equal(t, uint64(2), stats.RxBytes)
	assert.False(t, stats.StartTime.IsZero())
}

func TestCapabilitiesForUnknownKindIsZeroValue(t *testing.T) {
	caps := CapabilitiesFor(schema.TransportKindTag("bogus"))
	assert.Equal(t, schema.TransportCapabilities{}, caps)
}

func TestCheckModemLineRejectsTCPCapabilities(t *testing.T) {
	err := CheckModemLine(CapabilitiesFor(schema.TransportTCP))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrUnsupported, terr.Kind)
}

func TestCheckBreakAcceptsSerialCapabilities(t *testing.T) {
	err := CheckBreak(CapabilitiesFor(schema.TransportSerial))
	assert.NoError(t, err)
}
