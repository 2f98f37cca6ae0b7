package codec

// StxEtxFraming delimits frames with configurable start/end bytes (default
// STX 0x02 / ETX 0x03). It performs no payload escaping: callers guarantee
// the payload contains neither delimiter.
type StxEtxFraming struct {
	Stx byte
	Etx byte

	pending []byte
	inFrame bool
}

// NewStxEtxFraming returns a framer using the given delimiters.
func NewStxEtxFraming(stx, etx byte) *StxEtxFraming {
	return &StxEtxFraming{Stx: stx, Etx: etx}
}

// DefaultStxEtxFraming returns a framer using the conventional 0x02/0x03
// delimiters.
func DefaultStxEtxFraming() *StxEtxFraming {
	return NewStxEtxFraming(0x02, 0x03)
}

// Encode wraps p between Stx and Etx with no escaping.
func (f *StxEtxFraming) Encode(p []byte) []byte {
	out := make([]byte, 0, len(p)+2)
	out = append(out, f.Stx)
	out = append(out, p...)
	out = append(out, f.Etx)
	return out
}

// Feed appends stream bytes, discarding anything outside a Stx/Etx pair,
// and returns zero or more complete payloads.
func (f *StxEtxFraming) Feed(stream []byte) [][]byte {
	var frames [][]byte
	for _, b := range stream {
		switch {
		case b == f.Stx:
			f.inFrame = true
			f.pending = nil
		case b == f.Etx:
			if f.inFrame {
				frames = append(frames, f.pending)
				f.pending = nil
				f.inFrame = false
			}
		case f.inFrame:
			f.pending = append(f.pending, b)
		}
	}
	return frames
}
