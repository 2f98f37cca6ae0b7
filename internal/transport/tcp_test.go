package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/termbridge/schema"
)

func TestClassifyDialErrMapsDeadlineExceeded(t *testing.T) {
	err := classifyDialErr(context.DeadlineExceeded)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrTimeout, terr.Kind)
}

func TestClassifyDialErrDefaultsToConnectionRefused(t *testing.T) {
	err := classifyDialErr(errors.New("connect: connection refused"))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrConnectionRefused, terr.Kind)
}

func TestTCPSendBeforeConnectFails(t *testing.T) {
	tc := NewTCP(schema.TCPParams{Host: "127.0.0.1", Port: 9})
	_, err := tc.Send(context.Background(), []byte("x"))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrClosed, terr.Kind)
}

func TestTCPModemLineAndBreakAreUnsupported(t *testing.T) {
	tc := NewTCP(schema.TCPParams{})
	require.Error(t, tc.SetModemLine(ModemLineDTR, true))
	require.Error(t, tc.SendBreak(context.Background(), 0))
}

func TestTCPCapabilitiesDenyModemAndBreak(t *testing.T) {
	tc := NewTCP(schema.TCPParams{})
	caps := tc.Capabilities()
	assert.False(t, caps.SupportsModemLines)
	assert.False(t, caps.SupportsBreak)
}
