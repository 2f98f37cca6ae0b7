package terminal

import (
	"strconv"

	"github.com/mattn/go-runewidth"
)

// Size is a terminal's column and row count.
type Size struct {
	Cols, Rows int
}

// DefaultSize is the size a Emulator starts at when none is given.
var DefaultSize = Size{Cols: 80, Rows: 24}

// MouseMode selects how (and whether) pointer events are reported to the
// remote end.
type MouseMode int

const (
	MouseNone MouseMode = iota
	MouseX10
	MouseNormal
	MouseButtonEvent
	MouseAnyEvent
)

// MouseModifiers are the keyboard modifiers held during a mouse event.
type MouseModifiers struct {
	Shift, Alt, Ctrl bool
}

// Emulator drives a Screen (and, while DECSET ?1049/?47 is active, a
// second alternate Screen) from the byte stream a Parser turns into
// AnsiEvents. It owns the modes a screen doesn't: application cursor
// keys, bracketed paste, mouse reporting, and the window title OSC sets.
type Emulator struct {
	parser *Parser
	screen *Screen
	alt    *Screen
	useAlt bool
	size   Size

	appCursorKeys  bool
	bracketedPaste bool
	mouseMode      MouseMode
	title          string

	respond func([]byte)
}

// SetResponder registers the function Emulator uses to write DSR/cursor
// position report replies back to the remote end. Without one, status
// reports are silently dropped.
func (e *Emulator) SetResponder(respond func([]byte)) {
	e.respond = respond
}

// NewEmulator returns an Emulator at size, with a fresh Parser and Screen.
func NewEmulator(size Size) *Emulator {
	if size.Cols < 1 {
		size = DefaultSize
	}
	return &Emulator{
		parser: NewParser(),
		screen: NewScreen(size.Cols, size.Rows),
		size:   size,
	}
}

// Process feeds data through the parser and applies every resulting event
// to the active screen.
func (e *Emulator) Process(data []byte) {
	for _, ev := range e.parser.Parse(data) {
		e.handleEvent(ev)
	}
}

// Screen returns the currently active screen (alternate, if selected).
func (e *Emulator) Screen() *Screen {
	if e.useAlt && e.alt != nil {
		return e.alt
	}
	return e.screen
}

// PrimaryScreen returns the primary screen regardless of which is active.
func (e *Emulator) PrimaryScreen() *Screen { return e.screen }

// Size returns the emulator's configured terminal size.
func (e *Emulator) Size() Size { return e.size }

// Title returns the last window title set by an OSC 0/1/2 sequence.
func (e *Emulator) Title() string { return e.title }

// IsAltScreen reports whether the alternate screen buffer is active.
func (e *Emulator) IsAltScreen() bool { return e.useAlt }

// MouseModeValue returns the current mouse reporting mode.
func (e *Emulator) MouseModeValue() MouseMode { return e.mouseMode }

// BracketedPaste reports whether bracketed paste mode is enabled.
func (e *Emulator) BracketedPaste() bool { return e.bracketedPaste }

// AppCursorKeys reports whether application cursor key mode is enabled.
func (e *Emulator) AppCursorKeys() bool { return e.appCursorKeys }

// Resize changes the terminal's column/row count, resizing both the
// primary and (if allocated) alternate screens.
func (e *Emulator) Resize(size Size) {
	e.size = size
	e.screen.Resize(size.Cols, size.Rows)
	if e.alt != nil {
		e.alt.Resize(size.Cols, size.Rows)
	}
}

// Reset returns the emulator to its just-constructed state: fresh
// screens, no alternate buffer, all modes off.
func (e *Emulator) Reset() {
	e.screen = NewScreen(e.size.Cols, e.size.Rows)
	e.alt = nil
	e.useAlt = false
	e.appCursorKeys = false
	e.bracketedPaste = false
	e.mouseMode = MouseNone
	e.title = ""
}

func (e *Emulator) handleEvent(ev AnsiEvent) {
	switch ev.Kind {
	case EventPrint:
		e.printRune(ev.Ch)
	case EventExecute:
		e.handleControl(ev.Byte)
	case EventCsiDispatch:
		e.handleCSI(ev.Params, ev.Intermediates, ev.Action)
	case EventEscDispatch:
		e.handleEsc(ev.Intermediates, ev.Action)
	case EventOscDispatch:
		e.handleOSC(ev.OscParams)
	case EventDcsDispatch:
		// Device-specific query/response passthrough has no session-level
		// effect here; the raw payload is discarded and not exposed to
		// callers, since no known DCS sequence in this domain mutates
		// screen state.
	}
}

func (e *Emulator) printRune(r rune) {
	w := runewidth.RuneWidth(r)
	if w <= 0 {
		w = 1
	}
	e.Screen().PutCharWidth(r, w)
}

func (e *Emulator) handleControl(b byte) {
	screen := e.Screen()
	switch b {
	case 0x08: // BS
		screen.MoveCursorLeft(1)
	case 0x09: // HT
		screen.MoveToNextTab()
	case 0x0A, 0x0B, 0x0C: // LF, VT, FF
		screen.LineFeed()
	case 0x0D: // CR
		screen.CarriageReturn()
	case 0x0E: // SO -> G1
		screen.SetCharset(1)
	case 0x0F: // SI -> G0
		screen.SetCharset(0)
	}
}

// csiParam returns params[idx] if present and non-zero, else deflt —
// matching the convention that a 0 or missing CSI parameter means "use
// the default", not "use zero".
func csiParam(params []int, idx, deflt int) int {
	if idx < len(params) && params[idx] != 0 {
		return params[idx]
	}
	return deflt
}

func (e *Emulator) handleCSI(params []int, intermediates []byte, action byte) {
	p := func(idx, deflt int) int { return csiParam(params, idx, deflt) }
	screen := e.Screen()

	switch action {
	case 'A':
		screen.MoveCursorUp(p(0, 1))
	case 'B':
		screen.MoveCursorDown(p(0, 1))
	case 'C':
		screen.MoveCursorRight(p(0, 1))
	case 'D':
		screen.MoveCursorLeft(p(0, 1))
	case 'E':
		screen.MoveCursorDown(p(0, 1))
		screen.CarriageReturn()
	case 'F':
		screen.MoveCursorUp(p(0, 1))
		screen.CarriageReturn()
	case 'G':
		screen.SetCursorCol(p(0, 1) - 1)
	case 'H', 'f':
		screen.SetCursorPos(p(0, 1)-1, p(1, 1)-1)
	case 'J':
		switch p(0, 0) {
		case 0:
			screen.EraseBelow()
		case 1:
			screen.EraseAbove()
		case 2:
			screen.EraseAll()
		case 3:
			screen.EraseScrollback()
		}
	case 'K':
		switch p(0, 0) {
		case 0:
			screen.EraseLineRight()
		case 1:
			screen.EraseLineLeft()
		case 2:
			screen.EraseLine()
		}
	case 'L':
		screen.InsertLines(p(0, 1))
	case 'M':
		screen.DeleteLines(p(0, 1))
	case 'P':
		screen.DeleteChars(p(0, 1))
	case 'S':
		screen.ScrollUp(p(0, 1))
	case 'T':
		screen.ScrollDown(p(0, 1))
	case 'X':
		screen.EraseChars(p(0, 1))
	case '@':
		screen.InsertChars(p(0, 1))
	case 'd':
		screen.SetCursorRow(p(0, 1) - 1)
	case 'm':
		e.handleSGR(params)
	case 'r':
		top := p(0, 1)
		bottom := p(1, e.size.Rows)
		screen.SetScrollRegion(top-1, bottom-1)
	case 's':
		screen.SaveCursor()
	case 'u':
		screen.RestoreCursor()
	case 'h':
		e.handleMode(params, intermediates, true)
	case 'l':
		e.handleMode(params, intermediates, false)
	case 'n':
		e.handleDSR(params)
	case 'c':
		// Device attributes query: not answered, dropped.
	}
}

// handleDSR answers a Device Status Report: `5n` asks for a status ping
// (answered "ready"), `6n` asks for the cursor position.
func (e *Emulator) handleDSR(params []int) {
	if e.respond == nil || len(params) == 0 {
		return
	}
	switch params[0] {
	case 5:
		e.respond([]byte("\x1b[0n"))
	case 6:
		row, col := e.Screen().CursorPos()
		e.respond([]byte("\x1b[" + strconv.Itoa(row+1) + ";" + strconv.Itoa(col+1) + "R"))
	}
}

func (e *Emulator) handleSGR(params []int) {
	screen := e.Screen()
	if len(params) == 0 {
		screen.ResetStyle()
		return
	}
	for i := 0; i < len(params); i++ {
		v := params[i]
		switch {
		case v == 0:
			screen.ResetStyle()
		case v == 1:
			screen.SetBold(true)
		case v == 2:
			screen.SetDim(true)
		case v == 3:
			screen.SetItalic(true)
		case v == 4:
			screen.SetUnderline(true)
		case v == 5:
			screen.SetBlink(true)
		case v == 7:
			screen.SetInverse(true)
		case v == 8:
			screen.SetHidden(true)
		case v == 9:
			screen.SetStrikethrough(true)
		case v == 21:
			screen.SetBold(false)
		case v == 22:
			screen.SetBold(false)
			screen.SetDim(false)
		case v == 23:
			screen.SetItalic(false)
		case v == 24:
			screen.SetUnderline(false)
		case v == 25:
			screen.SetBlink(false)
		case v == 27:
			screen.SetInverse(false)
		case v == 28:
			screen.SetHidden(false)
		case v == 29:
			screen.SetStrikethrough(false)
		case v >= 30 && v <= 37:
			screen.SetFGColor(NamedColorValue(NamedColorFromANSI(uint8(v - 30))))
		case v == 38:
			if c, n := parseExtendedColor(params[i+1:]); n > 0 {
				screen.SetFGColor(c)
				i += n
			}
		case v == 39:
			screen.SetFGColor(DefaultColor)
		case v >= 40 && v <= 47:
			screen.SetBGColor(NamedColorValue(NamedColorFromANSI(uint8(v - 40))))
		case v == 48:
			if c, n := parseExtendedColor(params[i+1:]); n > 0 {
				screen.SetBGColor(c)
				i += n
			}
		case v == 49:
			screen.SetBGColor(DefaultColor)
		case v >= 90 && v <= 97:
			screen.SetFGColor(NamedColorValue(NamedColorFromANSI(uint8(v-90) + 8)))
		case v >= 100 && v <= 107:
			screen.SetBGColor(NamedColorValue(NamedColorFromANSI(uint8(v-100) + 8)))
		}
	}
}

// parseExtendedColor decodes the tail of a 38/48 SGR sequence (256-color
// `5;n` or 24-bit `2;r;g;b`) and reports how many extra params it
// consumed so the caller's loop can skip over them.
func parseExtendedColor(rest []int) (Color, int) {
	if len(rest) == 0 {
		return Color{}, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return Color{}, 0
		}
		return IndexedColor(uint8(rest[1])), 2
	case 2:
		if len(rest) < 4 {
			return Color{}, 0
		}
		return RGBColor(uint8(rest[1]), uint8(rest[2]), uint8(rest[3])), 4
	default:
		return Color{}, 0
	}
}

func (e *Emulator) handleMode(params []int, intermediates []byte, set bool) {
	isDEC := len(intermediates) > 0 && intermediates[0] == '?'
	screen := e.Screen()
	for _, param := range params {
		if isDEC {
			switch param {
			case 1:
				e.appCursorKeys = set
			case 7:
				screen.SetAutoWrap(set)
			case 25:
				screen.SetCursorVisible(set)
			case 47, 1047:
				e.setAltScreen(set)
			case 1000:
				e.mouseMode = pick(set, MouseNormal, MouseNone)
			case 1002:
				e.mouseMode = pick(set, MouseButtonEvent, MouseNone)
			case 1003:
				e.mouseMode = pick(set, MouseAnyEvent, MouseNone)
			case 1006:
				// SGR mouse encoding: this emulator's Mouse*() helpers
				// already emit the classic X10 form; nothing to toggle.
			case 1049:
				if set {
					e.screen.SaveCursor()
					e.setAltScreen(true)
				} else {
					e.setAltScreen(false)
					e.screen.RestoreCursor()
				}
			case 2004:
				e.bracketedPaste = set
			}
		} else {
			switch param {
			case 4:
				screen.SetInsertMode(set)
			case 20:
				screen.SetNewlineMode(set)
			}
		}
	}
}

func pick(cond bool, ifTrue, ifFalse MouseMode) MouseMode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func (e *Emulator) setAltScreen(set bool) {
	if set {
		if e.alt == nil {
			e.alt = NewScreen(e.size.Cols, e.size.Rows)
		}
		e.useAlt = true
	} else {
		e.useAlt = false
	}
}

func (e *Emulator) handleEsc(intermediates []byte, action byte) {
	screen := e.Screen()
	switch {
	case len(intermediates) == 1 && (intermediates[0] == '(' || intermediates[0] == ')'):
		slot := 0
		if intermediates[0] == ')' {
			slot = 1
		}
		screen.DesignateGraphics(slot, action == '0')
	case action == '7':
		screen.SaveCursor()
	case action == '8':
		screen.RestoreCursor()
	case action == 'D':
		screen.LineFeed()
	case action == 'E':
		screen.CarriageReturn()
		screen.LineFeed()
	case action == 'M':
		screen.ReverseLineFeed()
	case action == 'c':
		e.Reset()
	}
}

func (e *Emulator) handleOSC(params [][]byte) {
	if len(params) == 0 {
		return
	}
	cmd, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return
	}
	switch cmd {
	case 0, 1, 2:
		if len(params) > 1 {
			e.title = string(params[1])
		}
	case 4:
		// Palette set/query: no palette is maintained since rendering
		// colors to pixels is out of scope; the SGR-level Color value is
		// already available to callers via Screen cell styles.
	case 52:
		// Clipboard operations: no clipboard integration in this build.
	}
}

// MousePress encodes a button-press event for the wire, or nil if mouse
// reporting is off.
func (e *Emulator) MousePress(button uint8, col, row int, mods MouseModifiers) []byte {
	return e.encodeMouseEvent(button, col, row, mods, false)
}

// MouseRelease encodes a button-release event for the wire.
func (e *Emulator) MouseRelease(col, row int, mods MouseModifiers) []byte {
	return e.encodeMouseEvent(3, col, row, mods, false)
}

// MouseMotion encodes a motion event for the wire, honoring the reporting
// mode's restriction on when motion is actually sent.
func (e *Emulator) MouseMotion(button uint8, col, row int, mods MouseModifiers) []byte {
	return e.encodeMouseEvent(button, col, row, mods, true)
}

// MouseWheel encodes a wheel-scroll event for the wire.
func (e *Emulator) MouseWheel(up bool, col, row int, mods MouseModifiers) []byte {
	button := uint8(65)
	if up {
		button = 64
	}
	return e.encodeMouseEvent(button, col, row, mods, false)
}

func (e *Emulator) encodeMouseEvent(button uint8, col, row int, mods MouseModifiers, motion bool) []byte {
	if e.mouseMode == MouseNone {
		return nil
	}
	if motion && e.mouseMode != MouseButtonEvent && e.mouseMode != MouseAnyEvent {
		return nil
	}

	cb := button
	if mods.Shift {
		cb |= 4
	}
	if mods.Alt {
		cb |= 8
	}
	if mods.Ctrl {
		cb |= 16
	}
	if motion {
		cb |= 32
	}

	cx := uint8(minInt(col, 222) + 33)
	cy := uint8(minInt(row, 222) + 33)

	return []byte{0x1b, '[', 'M', cb + 32, cx, cy}
}
