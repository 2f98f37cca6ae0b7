package codec

import "encoding/binary"

// PrefixWidth is the size in bytes of a length-prefix header.
type PrefixWidth int

// Supported prefix widths.
const (
	PrefixWidth8  PrefixWidth = 1
	PrefixWidth16 PrefixWidth = 2
	PrefixWidth32 PrefixWidth = 4
)

// LengthPrefixFraming frames payloads behind a fixed-width length header of
// configurable width and endianness.
type LengthPrefixFraming struct {
	Width       PrefixWidth
	BigEndian   bool
	MaxPayload  int // 0 means unbounded

	buf []byte
}

// NewLengthPrefixFraming constructs a framer. maxPayload of 0 disables the
// oversize check.
func NewLengthPrefixFraming(width PrefixWidth, bigEndian bool, maxPayload int) *LengthPrefixFraming {
	return &LengthPrefixFraming{Width: width, BigEndian: bigEndian, MaxPayload: maxPayload}
}

func (f *LengthPrefixFraming) putLen(out []byte, n int) []byte {
	switch f.Width {
	case PrefixWidth8:
		return append(out, byte(n))
	case PrefixWidth16:
		var b [2]byte
		if f.BigEndian {
			binary.BigEndian.PutUint16(b[:], uint16(n))
		} else {
			binary.LittleEndian.PutUint16(b[:], uint16(n))
		}
		return append(out, b[:]...)
	default: // PrefixWidth32
		var b [4]byte
		if f.BigEndian {
			binary.BigEndian.PutUint32(b[:], uint32(n))
		} else {
			binary.LittleEndian.PutUint32(b[:], uint32(n))
		}
		return append(out, b[:]...)
	}
}

func (f *LengthPrefixFraming) getLen(p []byte) int {
	switch f.Width {
	case PrefixWidth8:
		return int(p[0])
	case PrefixWidth16:
		if f.BigEndian {
			return int(binary.BigEndian.Uint16(p))
		}
		return int(binary.LittleEndian.Uint16(p))
	default: // PrefixWidth32
		if f.BigEndian {
			return int(binary.BigEndian.Uint32(p))
		}
		return int(binary.LittleEndian.Uint32(p))
	}
}

// Encode prepends a length header of the configured width to p.
func (f *LengthPrefixFraming) Encode(p []byte) []byte {
	out := make([]byte, 0, int(f.Width)+len(p))
	out = f.putLen(out, len(p))
	out = append(out, p...)
	return out
}

// Feed appends stream bytes and returns zero or more complete payloads,
// retaining any partial header/payload across calls. Returns
// FramingError(ErrOversize) if a declared length exceeds MaxPayload.
func (f *LengthPrefixFraming) Feed(stream []byte) ([][]byte, error) {
	f.buf = append(f.buf, stream...)
	var frames [][]byte
	width := int(f.Width)
	for {
		if len(f.buf) < width {
			return frames, nil
		}
		n := f.getLen(f.buf)
		if f.MaxPayload > 0 && n > f.MaxPayload {
			return frames, newFramingError(ErrOversize, "declared length %d exceeds max %d", n, f.MaxPayload)
		}
		if len(f.buf) < width+n {
			return frames, nil
		}
		frames = append(frames, append([]byte(nil), f.buf[width:width+n]...))
		f.buf = f.buf[width+n:]
	}
}
