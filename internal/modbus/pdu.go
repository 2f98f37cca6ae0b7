package modbus

// decodePDU interprets a slave ID plus a PDU (function code byte followed
// by its data bytes, no trailing checksum) into a typed Frame. Function
// codes 1–6, 15, and 16 are decoded typed; 23(0x17)/0x2B and anything
// unrecognized are decoded as Raw, matching this decoder's
// known-but-unparsed rule.
func decodePDU(slaveID byte, pdu []byte) (Frame, error) {
	if len(pdu) < 1 {
		return Frame{}, newError(ErrTooShort, "empty pdu")
	}
	fc := pdu[0]
	data := pdu[1:]

	if fc&0x80 != 0 {
		if len(data) < 1 {
			return Frame{}, newError(ErrTooShort, "exception frame missing code")
		}
		return Frame{
			Kind:      FrameException,
			SlaveID:   slaveID,
			Function:  FunctionCode(fc & 0x7F),
			Exception: ExceptionCode(data[0]),
		}, nil
	}

	switch FunctionCode(fc) {
	case FuncReadCoils, FuncReadDiscreteInputs:
		if len(data) < 1 {
			return Frame{}, newError(ErrTooShort, "read-coils response missing byte count")
		}
		byteCount := int(data[0])
		if len(data) < 1+byteCount {
			return Frame{}, newError(ErrIncomplete, "read-coils response short by %d bytes", 1+byteCount-len(data))
		}
		return Frame{
			Kind:     FrameCoils,
			SlaveID:  slaveID,
			Function: FunctionCode(fc),
			Coils:    decodeCoils(data[1:1+byteCount], byteCount*8),
		}, nil

	case FuncReadHoldingRegisters, FuncReadInputRegisters:
		if len(data) < 1 {
			return Frame{}, newError(ErrTooShort, "read-registers response missing byte count")
		}
		byteCount := int(data[0])
		if len(data) < 1+byteCount {
			return Frame{}, newError(ErrIncomplete, "read-registers response short by %d bytes", 1+byteCount-len(data))
		}
		return Frame{
			Kind:      FrameRegisters,
			SlaveID:   slaveID,
			Function:  FunctionCode(fc),
			Registers: decodeRegisters(data[1 : 1+byteCount]),
		}, nil

	case FuncWriteSingleCoil, FuncWriteSingleRegister:
		if len(data) < 4 {
			return Frame{}, newError(ErrTooShort, "write-single response too short")
		}
		return Frame{
			Kind:     FrameWriteSingle,
			SlaveID:  slaveID,
			Function: FunctionCode(fc),
			Address:  uint16(data[0])<<8 | uint16(data[1]),
			Value:    uint16(data[2])<<8 | uint16(data[3]),
		}, nil

	case FuncWriteMultipleCoils, FuncWriteMultipleRegisters:
		if len(data) < 4 {
			return Frame{}, newError(ErrTooShort, "write-multiple response too short")
		}
		return Frame{
			Kind:     FrameWriteMultiple,
			SlaveID:  slaveID,
			Function: FunctionCode(fc),
			Address:  uint16(data[0])<<8 | uint16(data[1]),
			Quantity: uint16(data[2])<<8 | uint16(data[3]),
		}, nil

	default:
		return Frame{
			Kind:     FrameRaw,
			SlaveID:  slaveID,
			Function: FunctionCode(fc),
			Raw:      append([]byte(nil), data...),
		}, nil
	}
}
