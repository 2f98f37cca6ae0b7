package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlipRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x01, 0x02, 0x03},
		{0xC0, 0xDB, 0x00, 0xFF},
		bytes.Repeat([]byte{0xC0}, 16),
	}
	for _, p := range cases {
		encoded := SlipEncode(p)
		frames, err := SlipDecode(encoded)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, p, frames[0])
	}
}

func TestSlipDecoderEscapeSequence(t *testing.T) {
	// END ESC ESC_END END decodes to a single payload {END}.
	var d SlipDecoder
	frames, err := d.Feed([]byte{0xC0, 0xDB, 0xDC, 0xC0})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0xC0}, frames[0])
}

func TestSlipDecoderConcatenatedFrames(t *testing.T) {
	stream := append(SlipEncode([]byte("a")), SlipEncode([]byte("b"))...)
	var d SlipDecoder
	frames, err := d.Feed(stream)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("a"), frames[0])
	assert.Equal(t, []byte("b"), frames[1])
}

func TestSlipDecoderBadEscape(t *testing.T) {
	var d SlipDecoder
	_, err := d.Feed([]byte{0xC0, 0xDB, 0x01, 0xC0})
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrBadEscape, fe.Kind)
}

func TestSlipDecoderPartialAcrossFeeds(t *testing.T) {
	encoded := SlipEncode([]byte("hello"))
	var d SlipDecoder
	frames, err := d.Feed(encoded[:3])
	require.NoError(t, err)
	assert.Empty(t, frames)
	frames, err = d.Feed(encoded[3:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("hello"), frames[0])
}

func TestCobsRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x00},
		{0x01, 0x02, 0x03},
		{0x00, 0x00, 0x00},
		{0x11, 0x22, 0x00, 0x33},
		bytes.Repeat([]byte{0x01}, 300), // exercises the 254-byte block split
	}
	for _, p := range cases {
		encoded := CobsEncode(p)
		assert.NotContains(t, encoded, byte(0x00))
		decoded, err := CobsDecode(encoded)
		require.NoError(t, err)
		assert.Equal(t, p, decoded)
	}
}

func TestCobsEncodeFramedEmpty(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x00}, CobsEncodeFramed(nil))
}

func TestCobsDecoderStreaming(t *testing.T) {
	stream := append(CobsEncodeFramed([]byte("hi")), CobsEncodeFramed([]byte{0x00, 0x01})...)
	var d CobsDecoder
	frames, err := d.Feed(stream[:2])
	require.NoError(t, err)
	assert.Empty(t, frames)
	frames, err = d.Feed(stream[2:])
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("hi"), frames[0])
	assert.Equal(t, []byte{0x00, 0x01}, frames[1])
}

func TestCobsDecodeTruncated(t *testing.T) {
	_, err := CobsDecode([]byte{0x05, 0x01})
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrTruncated, fe.Kind)
}

func TestStxEtxFraming(t *testing.T) {
	f := DefaultStxEtxFraming()
	frames := f.Feed(f.Encode([]byte("abc")))
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("abc"), frames[0])
}

func TestStxEtxDiscardsOutsideDelimiters(t *testing.T) {
	f := DefaultStxEtxFraming()
	stream := append([]byte{0xAA, 0xBB}, f.Encode([]byte("xy"))...)
	frames := f.Feed(stream)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("xy"), frames[0])
}

func TestLengthPrefixFraming(t *testing.T) {
	f := NewLengthPrefixFraming(PrefixWidth16, true, 0)
	stream := append(f.Encode([]byte("one")), f.Encode([]byte("two"))...)
	frames, err := f.Feed(stream)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("one"), frames[0])
	assert.Equal(t, []byte("two"), frames[1])
}

func TestLengthPrefixOversize(t *testing.T) {
	f := NewLengthPrefixFraming(PrefixWidth8, true, 4)
	_, err := f.Feed(f.Encode([]byte("toolong")))
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrOversize, fe.Kind)
}

func TestLengthPrefixPartial(t *testing.T) {
	f := NewLengthPrefixFraming(PrefixWidth32, false, 0)
	encoded := f.Encode([]byte("payload"))
	frames, err := f.Feed(encoded[:3])
	require.NoError(t, err)
	assert.Empty(t, frames)
	frames, err = f.Feed(encoded[3:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("payload"), frames[0])
}

func TestLineFraming(t *testing.T) {
	lf := NewLineFraming(LineLf)
	frames := lf.Feed([]byte("one\ntwo\n\nthree"))
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("one"), frames[0])
	assert.Equal(t, []byte("two"), frames[1])

	crlf := NewLineFraming(LineCrLf)
	frames = crlf.Feed([]byte("a\r\nb\r\n"))
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("a"), frames[0])
	assert.Equal(t, []byte("b"), frames[1])
}

func TestChecksums(t *testing.T) {
	assert.Equal(t, uint16(0x4B37), CRC16Modbus([]byte("123456789")))
	assert.Equal(t, uint16(0x80B8), CRC16Modbus([]byte{0x01, 0x04, 0x02, 0xFF, 0xFF}))
	assert.Equal(t, byte(0x00), XORChecksum([]byte{0x01, 0x02, 0x03}))
	assert.Equal(t, byte(0xFF), XORChecksum([]byte{0xFF, 0x00}))
	assert.NotZero(t, CRC32([]byte("123456789")))
}

func TestLRCChecksum(t *testing.T) {
	// A well-formed LRC-protected frame sums to zero including its LRC byte.
	data := []byte{0x01, 0x02, 0x03}
	lrc := LRCChecksum(data)
	assert.Equal(t, byte(0), Sum8(append(append([]byte{}, data...), lrc)))
}
