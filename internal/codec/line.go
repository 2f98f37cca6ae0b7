package codec

import "bytes"

// LineDelimiter selects the line terminator used by LineFraming.
type LineDelimiter int

const (
	// LineLf splits on a bare 0x0A.
	LineLf LineDelimiter = iota
	// LineCrLf splits on 0x0D 0x0A.
	LineCrLf
)

// LineFraming implements the supplemented line-based scheme (LineLf /
// LineCrLf): payloads are delimited by a trailing terminator, with empty
// lines dropped rather than surfaced as zero-length payloads.
type LineFraming struct {
	Delimiter LineDelimiter

	buf []byte
}

// NewLineFraming constructs a line framer for the given delimiter style.
func NewLineFraming(d LineDelimiter) *LineFraming {
	return &LineFraming{Delimiter: d}
}

func (f *LineFraming) terminator() []byte {
	if f.Delimiter == LineCrLf {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// Encode appends the configured terminator to p.
func (f *LineFraming) Encode(p []byte) []byte {
	out := make([]byte, 0, len(p)+2)
	out = append(out, p...)
	out = append(out, f.terminator()...)
	return out
}

// Feed appends stream bytes and returns zero or more complete, non-empty
// lines, retaining any incomplete trailing line across calls.
func (f *LineFraming) Feed(stream []byte) [][]byte {
	f.buf = append(f.buf, stream...)
	term := f.terminator()
	var frames [][]byte
	for {
		idx := bytes.Index(f.buf, term)
		if idx < 0 {
			return frames
		}
		line := f.buf[:idx]
		f.buf = f.buf[idx+len(term):]
		if len(line) > 0 {
			frames = append(frames, append([]byte(nil), line...))
		}
	}
}
