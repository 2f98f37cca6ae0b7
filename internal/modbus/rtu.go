package modbus

import "pkt.systems/termbridge/internal/codec"

// DecodeRTU parses a Modbus RTU frame: slave(1) | fc(1) | data(n) |
// crc(2, little-endian, CRC-16/Modbus). The minimum frame length is 4
// (slave, fc, and two CRC bytes with empty data); the CRC over everything
// but the trailing two bytes must match the little-endian CRC-16/Modbus
// carried there.
func DecodeRTU(frame []byte) (Frame, error) {
	if len(frame) < 4 {
		return Frame{}, newError(ErrTooShort, "rtu frame length %d below minimum 4", len(frame))
	}
	body := frame[:len(frame)-2]
	want := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	got := codec.CRC16Modbus(body)
	if got != want {
		return Frame{}, newError(ErrChecksumMismatch, "crc16 mismatch: frame=%04x computed=%04x", want, got)
	}
	return decodePDU(body[0], body[1:])
}

// EncodeRTU builds a Modbus RTU frame from a slave ID, function code, and
// PDU data, appending the little-endian CRC-16/Modbus of everything
// preceding it.
func EncodeRTU(slaveID byte, function FunctionCode, data []byte) []byte {
	body := make([]byte, 0, 2+len(data)+2)
	body = append(body, slaveID, byte(function))
	body = append(body, data...)
	crc := codec.CRC16Modbus(body)
	body = append(body, byte(crc), byte(crc>>8))
	return body
}
