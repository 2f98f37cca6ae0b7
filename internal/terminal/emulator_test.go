package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmulatorPrintsText(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 2})
	e.Process([]byte("hi"))
	assert.Equal(t, "hi", e.Screen().LineText(0))
}

func TestEmulatorCursorMovement(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 5})
	e.Process([]byte("\x1b[3;4H"))
	row, col := e.Screen().CursorPos()
	assert.Equal(t, 2, row)
	assert.Equal(t, 3, col)
}

func TestEmulatorSGRAppliesStyle(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 2})
	e.Process([]byte("\x1b[1;31mX"))
	cell := e.Screen().Cell(0, 0)
	assert.Equal(t, 'X', cell.Ch)
	assert.True(t, cell.Style.Bold)
	assert.Equal(t, ColorNamed, cell.Style.FG.Kind)
	assert.Equal(t, Red, cell.Style.FG.Named)
}

func TestEmulatorSGR256Color(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 2})
	e.Process([]byte("\x1b[38;5;208mX"))
	cell := e.Screen().Cell(0, 0)
	assert.Equal(t, ColorIndexed, cell.Style.FG.Kind)
	assert.Equal(t, uint8(208), cell.Style.FG.Indexed)
}

func TestEmulatorSGRTrueColor(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 2})
	e.Process([]byte("\x1b[48;2;10;20;30mX"))
	cell := e.Screen().Cell(0, 0)
	assert.Equal(t, ColorRGB, cell.Style.BG.Kind)
	assert.Equal(t, uint8(10), cell.Style.BG.R)
	assert.Equal(t, uint8(20), cell.Style.BG.G)
	assert.Equal(t, uint8(30), cell.Style.BG.B)
}

func TestEmulatorAltScreenSwitchPreservesPrimaryContentAcrossToggle(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 5})
	e.Process([]byte("hello"))
	require.False(t, e.IsAltScreen())

	e.Process([]byte("\x1b[?1049h"))
	require.True(t, e.IsAltScreen())
	assert.Equal(t, "", e.Screen().LineText(0), "alt screen starts blank")

	e.Process([]byte("\x1b[?1049l"))
	require.False(t, e.IsAltScreen())
	assert.Equal(t, "hello", e.Screen().LineText(0), "primary content survives the round trip")
}

func TestEmulatorBracketedPasteToggle(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 5})
	e.Process([]byte("\x1b[?2004h"))
	assert.True(t, e.BracketedPaste())
	e.Process([]byte("\x1b[?2004l"))
	assert.False(t, e.BracketedPaste())
}

func TestEmulatorMouseModeToggle(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 5})
	e.Process([]byte("\x1b[?1000h"))
	assert.Equal(t, MouseNormal, e.MouseModeValue())
	assert.NotNil(t, e.MousePress(0, 1, 1, MouseModifiers{}))

	e.Process([]byte("\x1b[?1000l"))
	assert.Equal(t, MouseNone, e.MouseModeValue())
	assert.Nil(t, e.MousePress(0, 1, 1, MouseModifiers{}))
}

func TestEmulatorOSCSetsTitle(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 2})
	e.Process([]byte("\x1b]0;my session\x07"))
	assert.Equal(t, "my session", e.Title())
}

func TestEmulatorDSRCursorPositionReport(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 5})
	var got []byte
	e.SetResponder(func(b []byte) { got = append(got, b...) })
	e.Process([]byte("\x1b[3;4H\x1b[6n"))
	assert.Equal(t, "\x1b[3;4R", string(got))
}

func TestEmulatorResizeShrinksScreen(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 5})
	e.Resize(Size{Cols: 5, Rows: 3})
	assert.Equal(t, 5, e.Screen().Cols())
	assert.Equal(t, 3, e.Screen().Rows())
}

func TestEmulatorLineDrawingCharsetDesignation(t *testing.T) {
	e := NewEmulator(Size{Cols: 5, Rows: 1})
	e.Process([]byte("\x1b(0")) // designate G0 as special graphics
	e.Process([]byte("q"))
	assert.Equal(t, '─', e.Screen().Cell(0, 0).Ch)

	e.Process([]byte("\x1b(B")) // back to ASCII
	e.Process([]byte("q"))
	assert.Equal(t, 'q', e.Screen().Cell(0, 1).Ch)
}

func TestEmulatorWideRuneAdvancesTwoColumns(t *testing.T) {
	e := NewEmulator(Size{Cols: 10, Rows: 1})
	e.Process([]byte("\xe4\xb8\xad")) // 中, a wide CJK character
	_, col := e.Screen().CursorPos()
	assert.Equal(t, 2, col)
}
