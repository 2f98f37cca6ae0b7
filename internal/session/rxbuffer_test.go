package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRxBufferAppendUnderCapacityKeepsEverything(t *testing.T) {
	b := NewRxBuffer(16)
	b.Append([]byte("hello"), 0)
	b.Append([]byte("world"), 0)
	assert.Equal(t, "helloworld", string(b.Bytes()))
	assert.Equal(t, 10, b.Len())
}

func TestRxBufferEvictsHeadPastCapacity(t *testing.T) {
	b := NewRxBuffer(8)
	b.Append([]byte("0123456789"), 0)
	assert.Equal(t, "23456789", string(b.Bytes()))
}

func TestRxBufferHonorsRetentionAcrossEviction(t *testing.T) {
	b := NewRxBuffer(4)
	b.Append([]byte("AB"), 0)
	b.Append([]byte("CDEF"), 5)
	assert.Equal(t, "BCDEF", string(b.Bytes()), "retention (5) keeps more than capacity (4) would alone, exceeding it by one byte rather than trimming into the retained suffix")
}

func TestRxBufferTailReturnsSuffix(t *testing.T) {
	b := NewRxBuffer(64)
	b.Append([]byte("abcdef"), 0)
	assert.Equal(t, "def", string(b.Tail(3)))
	assert.Equal(t, "abcdef", string(b.Tail(100)))
}

func TestRxBufferResetClearsData(t *testing.T) {
	b := NewRxBuffer(64)
	b.Append([]byte("abc"), 0)
	b.Reset()
	assert.Equal(t, 0, b.Len())
}
