package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bug.st/serial"

	"pkt.systems/termbridge/schema"
)

func TestClampDataBitsRejectsOutOfRange(t *testing.T) {
	assert.Equal(t, 8, clampDataBits(4))
	assert.Equal(t, 8, clampDataBits(9))
	assert.Equal(t, 7, clampDataBits(7))
}

func TestToSerialParityMapsEveryKind(t *testing.T) {
	assert.Equal(t, serial.NoParity, toSerialParity(schema.ParityNone))
	assert.Equal(t, serial.OddParity, toSerialParity(schema.ParityOdd))
	assert.Equal(t, serial.EvenParity, toSerialParity(schema.ParityEven))
	assert.Equal(t, serial.MarkParity, toSerialParity(schema.ParityMark))
	assert.Equal(t, serial.SpaceParity, toSerialParity(schema.ParitySpace))
}

func TestToSerialStopBitsMapsEveryKind(t *testing.T) {
	assert.Equal(t, serial.OneStopBit, toSerialStopBits(1))
	assert.Equal(t, serial.OnePointFiveStopBits, toSerialStopBits(1.5))
	assert.Equal(t, serial.TwoStopBits, toSerialStopBits(2))
}

func TestClassifySerialErrDefaultsToIO(t *testing.T) {
	err := classifySerialErr("/dev/ttyUSB0", errors.New("boom"))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrIO, terr.Kind)
}

func TestSerialSendBeforeConnectFails(t *testing.T) {
	s := NewSerial(schema.SerialParams{Port: "/dev/ttyUSB0", Baud: 9600})
	_, err := s.Send(nil, []byte("x"))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrClosed, terr.Kind)
}

func TestSerialSetModemLineChecksConnectionBeforeLine(t *testing.T) {
	s := NewSerial(schema.SerialParams{Port: "/dev/ttyUSB0", Baud: 9600})
	s.port = nil
	err := s.SetModemLine(ModemLine("bogus"), true)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrClosed, terr.Kind, "not-connected is checked before the line is validated")
}

func TestSerialCapabilitiesAdvertiseModemAndBreak(t *testing.T) {
	s := NewSerial(schema.SerialParams{})
	caps := s.Capabilities()
	assert.True(t, caps.SupportsModemLines)
	assert.True(t, caps.SupportsBreak)
	assert.Equal(t, 3_000_000, caps.MaxBaud)
}
