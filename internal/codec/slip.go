package codec

// SLIP byte values per RFC 1055.
const (
	slipEnd    byte = 0xC0
	slipEsc    byte = 0xDB
	slipEscEnd byte = 0xDC
	slipEscEsc byte = 0xDD
)

// SlipEncode wraps p in SLIP framing: a leading END, the payload with
// 0xC0/0xDB byte-stuffed, and a trailing END.
func SlipEncode(p []byte) []byte {
	out := make([]byte, 0, len(p)+2)
	out = append(out, slipEnd)
	for _, b := range p {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, slipEnd)
	return out
}

// SlipDecoder is a streaming SLIP decoder: incomplete trailing data is
// retained across calls to Feed. END bytes toggle frame boundaries (the
// encoder always emits a leading and trailing END), so a bare END..END
// pair decodes to a single empty frame rather than being swallowed as
// idle framing.
type SlipDecoder struct {
	pending  []byte
	inFrame  bool
	escaping bool
}

// Feed appends stream bytes and returns zero or more decoded payloads.
func (d *SlipDecoder) Feed(stream []byte) ([][]byte, error) {
	var frames [][]byte
	for _, b := range stream {
		if b == slipEnd {
			if d.inFrame {
				frames = append(frames, d.pending)
				d.pending = nil
				d.inFrame = false
				d.escaping = false
			} else {
				d.inFrame = true
			}
			continue
		}
		if !d.inFrame {
			continue // resynchronising: discard bytes before the first END
		}
		if d.escaping {
			d.escaping = false
			switch b {
			case slipEscEnd:
				d.pending = append(d.pending, slipEnd)
			case slipEscEsc:
				d.pending = append(d.pending, slipEsc)
			default:
				return frames, newFramingError(ErrBadEscape, "0x%02x after ESC", b)
			}
			continue
		}
		if b == slipEsc {
			d.escaping = true
			continue
		}
		d.pending = append(d.pending, b)
	}
	return frames, nil
}

// SlipDecode decodes a complete, self-delimited SLIP stream in one shot.
// Trailing undelimited bytes are discarded (use SlipDecoder to retain
// partial frames across reads).
func SlipDecode(stream []byte) ([][]byte, error) {
	var d SlipDecoder
	return d.Feed(stream)
}
