package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/termbridge/internal/codec"
)

func TestDecodeRTUReadInputRegisters(t *testing.T) {
	// spec's own worked example: 01 04 02 FF FF crc=0x80B8 (little-endian B8 80)
	frame := []byte{0x01, 0x04, 0x02, 0xFF, 0xFF, 0xB8, 0x80}
	f, err := DecodeRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameRegisters, f.Kind)
	assert.Equal(t, byte(1), f.SlaveID)
	assert.Equal(t, FuncReadInputRegisters, f.Function)
	assert.Equal(t, []uint16{0xFFFF}, f.Registers)
}

func TestDecodeRTUChecksumMismatch(t *testing.T) {
	frame := []byte{0x01, 0x04, 0x02, 0xFF, 0xFF, 0x00, 0x00}
	_, err := DecodeRTU(frame)
	require.Error(t, err)
	var modbusErr *Error
	require.ErrorAs(t, err, &modbusErr)
	assert.Equal(t, ErrChecksumMismatch, modbusErr.Kind)
}

func TestDecodeRTUTooShort(t *testing.T) {
	_, err := DecodeRTU([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
	var modbusErr *Error
	require.ErrorAs(t, err, &modbusErr)
	assert.Equal(t, ErrTooShort, modbusErr.Kind)
}

func TestEncodeDecodeRTURoundTrip(t *testing.T) {
	// EncodeRTU/DecodeRTU round-trip a response-shaped PDU: byte count then
	// coil bytes, not a request's address/quantity pair.
	frame := EncodeRTU(0x11, FuncReadCoils, []byte{0x01, 0b00000101})
	f, err := DecodeRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameCoils, f.Kind)
	assert.Equal(t, byte(0x11), f.SlaveID)
	require.Len(t, f.Coils, 8)
	assert.True(t, f.Coils[0])
}

func TestDecodeRTUCoils(t *testing.T) {
	// slave=1 fc=1 (read coils response) bytecount=1 data=0b00000101
	body := []byte{0x01, 0x01, 0x01, 0b00000101}
	crc := codec.CRC16Modbus(body)
	frame := append(append([]byte{}, body...), byte(crc), byte(crc>>8))
	f, err := DecodeRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameCoils, f.Kind)
	require.Len(t, f.Coils, 8)
	assert.True(t, f.Coils[0])
	assert.False(t, f.Coils[1])
	assert.True(t, f.Coils[2])
}

func TestDecodeRTUWriteSingleRegister(t *testing.T) {
	body := []byte{0x01, 0x06, 0x00, 0x01, 0x00, 0x2A}
	crc := codec.CRC16Modbus(body)
	frame := append(append([]byte{}, body...), byte(crc), byte(crc>>8))
	f, err := DecodeRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameWriteSingle, f.Kind)
	assert.Equal(t, uint16(1), f.Address)
	assert.Equal(t, uint16(0x2A), f.Value)
}

func TestDecodeRTUWriteMultipleRegisters(t *testing.T) {
	body := []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x02}
	crc := codec.CRC16Modbus(body)
	frame := append(append([]byte{}, body...), byte(crc), byte(crc>>8))
	f, err := DecodeRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameWriteMultiple, f.Kind)
	assert.Equal(t, FuncWriteMultipleRegisters, f.Function)
	assert.Equal(t, uint16(1), f.Address)
	assert.Equal(t, uint16(2), f.Quantity)
}

func TestDecodeRTUException(t *testing.T) {
	body := []byte{0x01, 0x84, 0x02} // fc=4 with high bit set, exception=IllegalDataAddress
	crc := codec.CRC16Modbus(body)
	frame := append(append([]byte{}, body...), byte(crc), byte(crc>>8))
	f, err := DecodeRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameException, f.Kind)
	assert.Equal(t, FuncReadInputRegisters, f.Function)
	assert.Equal(t, ExcIllegalDataAddress, f.Exception)
}

func TestEncodeDecodeTCPRoundTrip(t *testing.T) {
	frame := EncodeTCP(0x0102, 0x01, FuncReadHoldingRegisters, []byte{0x02, 0xFF, 0xFF})
	header, f, err := DecodeTCP(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), header.TransactionID)
	assert.Equal(t, byte(0x01), header.UnitID)
	assert.Equal(t, FrameRegisters, f.Kind)
	assert.Equal(t, []uint16{0xFFFF}, f.Registers)
}

func TestDecodeTCPBadProtocolID(t *testing.T) {
	frame := []byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x03, 0x01, 0x03, 0x00}
	_, _, err := DecodeTCP(frame)
	require.Error(t, err)
	var modbusErr *Error
	require.ErrorAs(t, err, &modbusErr)
	assert.Equal(t, ErrBadProtocolID, modbusErr.Kind)
}

func TestDecodeTCPIncomplete(t *testing.T) {
	frame := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03}
	_, _, err := DecodeTCP(frame)
	require.Error(t, err)
	var modbusErr *Error
	require.ErrorAs(t, err, &modbusErr)
	assert.Equal(t, ErrIncomplete, modbusErr.Kind)
}

func TestEncodeDecodeASCIIRoundTrip(t *testing.T) {
	frame := EncodeASCII(0x01, FuncReadHoldingRegisters, []byte{0x02, 0xFF, 0xFF})
	f, err := DecodeASCII(frame)
	require.NoError(t, err)
	assert.Equal(t, FrameRegisters, f.Kind)
	assert.Equal(t, []uint16{0xFFFF}, f.Registers)
}

func TestDecodeASCIIRequiresColonPrefix(t *testing.T) {
	_, err := DecodeASCII([]byte("010300000001\r\n"))
	require.Error(t, err)
	var modbusErr *Error
	require.ErrorAs(t, err, &modbusErr)
	assert.Equal(t, ErrBadASCII, modbusErr.Kind)
}

func TestDecodeASCIIBadLRC(t *testing.T) {
	frame := []byte(":010304FFFF00\r\n") // wrong LRC byte
	_, err := DecodeASCII(frame)
	require.Error(t, err)
	var modbusErr *Error
	require.ErrorAs(t, err, &modbusErr)
	assert.Equal(t, ErrChecksumMismatch, modbusErr.Kind)
}

func TestDecodeDispatchesByMode(t *testing.T) {
	rtu := EncodeRTU(0x01, FuncReadHoldingRegisters, []byte{0x02, 0xFF, 0xFF})
	f, err := Decode(ModeRTU, rtu)
	require.NoError(t, err)
	assert.Equal(t, FrameRegisters, f.Kind)

	ascii := EncodeASCII(0x01, FuncReadHoldingRegisters, []byte{0x02, 0xFF, 0xFF})
	f, err = Decode(ModeASCII, ascii)
	require.NoError(t, err)
	assert.Equal(t, FrameRegisters, f.Kind)

	_, err = Decode(Mode("carrier-pigeon"), nil)
	require.Error(t, err)
}
