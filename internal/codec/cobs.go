package codec

// CobsEncode implements Consistent Overhead Byte Stuffing: every run of up
// to 254 non-zero bytes is prefixed with a single overhead byte encoding
// (run length + 1); the result contains no 0x00 bytes. Callers append the
// 0x00 frame delimiter themselves via CobsEncodeFramed.
func CobsEncode(p []byte) []byte {
	out := make([]byte, 0, len(p)+len(p)/254+1)
	codeIdx := len(out)
	out = append(out, 0) // placeholder for the first overhead byte
	code := byte(1)

	for _, b := range p {
		if b == 0 {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}
	out[codeIdx] = code
	return out
}

// CobsEncodeFramed encodes p and appends the trailing 0x00 delimiter,
// matching the wire form callers exchange over a stream transport. Empty
// frames are legal and encode as a single 0x01 0x00.
func CobsEncodeFramed(p []byte) []byte {
	return append(CobsEncode(p), 0)
}

// CobsDecode reverses CobsEncode for a single delimiter-free block.
func CobsDecode(p []byte) ([]byte, error) {
	out := make([]byte, 0, len(p))
	i := 0
	for i < len(p) {
		code := p[i]
		if code == 0 {
			return nil, newFramingError(ErrBadEscape, "unexpected zero byte at offset %d", i)
		}
		i++
		runLen := int(code) - 1
		if i+runLen > len(p) {
			return nil, newFramingError(ErrTruncated, "overhead byte %d promises %d bytes, %d remain", code, runLen, len(p)-i)
		}
		out = append(out, p[i:i+runLen]...)
		i += runLen
		if code != 0xFF && i < len(p) {
			out = append(out, 0)
		}
	}
	return out, nil
}

// CobsDecoder is a streaming decoder over a 0x00-delimited byte stream.
type CobsDecoder struct {
	pending []byte
}

// Feed appends stream bytes and returns zero or more decoded payloads.
func (d *CobsDecoder) Feed(stream []byte) ([][]byte, error) {
	var frames [][]byte
	start := 0
	for i, b := range stream {
		if b != 0 {
			continue
		}
		block := append(d.pending, stream[start:i]...)
		d.pending = nil
		start = i + 1
		payload, err := CobsDecode(block)
		if err != nil {
			return frames, err
		}
		frames = append(frames, payload)
	}
	d.pending = append(d.pending, stream[start:]...)
	return frames, nil
}
