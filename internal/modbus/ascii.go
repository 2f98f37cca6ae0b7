package modbus

import (
	"bytes"
	"encoding/hex"

	"pkt.systems/termbridge/internal/codec"
)

// DecodeASCII parses a Modbus ASCII frame: ':' followed by hex-encoded
// slave(1) | fc(1) | data(n) | lrc(1), terminated by CRLF (the trailing
// CRLF, if present, is stripped before decoding). The LRC is the
// two's-complement checksum of slave+fc+data.
func DecodeASCII(frame []byte) (Frame, error) {
	line := bytes.TrimRight(frame, "\r\n")
	if len(line) == 0 || line[0] != ':' {
		return Frame{}, newError(ErrBadASCII, "missing leading ':'")
	}
	body := line[1:]
	if len(body)%2 != 0 {
		return Frame{}, newError(ErrBadASCII, "odd number of hex digits")
	}
	raw := make([]byte, len(body)/2)
	if _, err := hex.Decode(raw, body); err != nil {
		return Frame{}, newError(ErrBadASCII, "invalid hex: %v", err)
	}
	if len(raw) < 3 {
		return Frame{}, newError(ErrTooShort, "ascii frame decodes to %d bytes, need at least 3", len(raw))
	}
	data, wantLRC := raw[:len(raw)-1], raw[len(raw)-1]
	if got := codec.LRCChecksum(data); got != wantLRC {
		return Frame{}, newError(ErrChecksumMismatch, "lrc mismatch: frame=%02x computed=%02x", wantLRC, got)
	}
	return decodePDU(data[0], data[1:])
}

// EncodeASCII builds a Modbus ASCII frame from a slave ID, function code,
// and PDU data, hex-encoding it with a leading ':' and a trailing CRLF.
func EncodeASCII(slaveID byte, function FunctionCode, data []byte) []byte {
	body := make([]byte, 0, 2+len(data)+1)
	body = append(body, slaveID, byte(function))
	body = append(body, data...)
	body = append(body, codec.LRCChecksum(body))

	out := make([]byte, 0, 1+len(body)*2+2)
	out = append(out, ':')
	hexBuf := make([]byte, len(body)*2)
	hex.Encode(hexBuf, body)
	out = append(out, bytes.ToUpper(hexBuf)...)
	out = append(out, '\r', '\n')
	return out
}
