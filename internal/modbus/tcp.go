package modbus

// DecodeTCP parses a Modbus TCP (MBAP) frame: header {transaction(2),
// protocol(2)=0, length(2), unit(1)} followed by fc(1) | data(length-2).
// There is no separate checksum; TCP relies on the transport for
// integrity.
func DecodeTCP(frame []byte) (TCPHeader, Frame, error) {
	if len(frame) < 8 {
		return TCPHeader{}, Frame{}, newError(ErrTooShort, "tcp frame length %d below minimum 8", len(frame))
	}
	header := TCPHeader{
		TransactionID: uint16(frame[0])<<8 | uint16(frame[1]),
		ProtocolID:    uint16(frame[2])<<8 | uint16(frame[3]),
		Length:        uint16(frame[4])<<8 | uint16(frame[5]),
		UnitID:        frame[6],
	}
	if header.ProtocolID != 0 {
		return header, Frame{}, newError(ErrBadProtocolID, "protocol id %d", header.ProtocolID)
	}
	expected := 6 + int(header.Length)
	if len(frame) < expected {
		return header, Frame{}, newError(ErrIncomplete, "declared length %d, have %d bytes", expected, len(frame))
	}
	f, err := decodePDU(header.UnitID, frame[7:expected])
	return header, f, err
}

// EncodeTCP builds a Modbus TCP (MBAP) frame around a PDU (function code
// plus data).
func EncodeTCP(transactionID uint16, unitID byte, function FunctionCode, data []byte) []byte {
	pdu := make([]byte, 0, 1+len(data))
	pdu = append(pdu, byte(function))
	pdu = append(pdu, data...)

	length := uint16(len(pdu) + 1)
	frame := make([]byte, 0, 7+len(pdu))
	frame = append(frame, byte(transactionID>>8), byte(transactionID))
	frame = append(frame, 0, 0)
	frame = append(frame, byte(length>>8), byte(length))
	frame = append(frame, unitID)
	frame = append(frame, pdu...)
	return frame
}
