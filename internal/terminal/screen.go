package terminal

import "strings"

type savedCursor struct {
	row, col int
	style    CellStyle
}

// Screen is a fixed row×col grid of cells with a VT100-style cursor,
// scroll region, and save/restore stack of depth one (matching real
// hardware, which only ever remembers the most recent save).
//
// Resize does not discard content gratuitously: shrinking height clips
// from the top (the oldest visible rows go first, as if they scrolled off),
// shrinking width clips from the right, and growing either dimension pads
// with blank cells rather than reflowing.
type Screen struct {
	cols, rows int
	cells      []Cell

	cursorRow, cursorCol int
	currentStyle         CellStyle
	cursorVisible        bool
	autoWrap             bool
	insertMode           bool
	newlineMode          bool

	scrollTop, scrollBottom int
	saved                   savedCursor

	charset  int // 0 = G0, 1 = G1
	g0Graphics bool
	g1Graphics bool

	tabStops []int
}

// NewScreen returns a Screen of the given size with tab stops every 8
// columns, cursor visible, and autowrap enabled.
func NewScreen(cols, rows int) *Screen {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	s := &Screen{
		cols:          cols,
		rows:          rows,
		cells:         make([]Cell, cols*rows),
		cursorVisible: true,
		autoWrap:      true,
		scrollBottom:  rows - 1,
	}
	s.fillBlank()
	s.resetTabStops()
	return s
}

func (s *Screen) fillBlank() {
	for i := range s.cells {
		s.cells[i] = blankCell()
	}
}

func (s *Screen) resetTabStops() {
	s.tabStops = s.tabStops[:0]
	for c := 0; c < s.cols; c += 8 {
		s.tabStops = append(s.tabStops, c)
	}
}

// Resize changes the grid dimensions, clipping from the top/right when
// shrinking and padding blank cells at the bottom/right when growing.
func (s *Screen) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	newCells := make([]Cell, cols*rows)
	for i := range newCells {
		newCells[i] = blankCell()
	}

	copyCols := minInt(s.cols, cols)
	copyRows := minInt(s.rows, rows)

	// Shrinking height clips from the top: source rows come from the
	// tail of the old grid and land at the top of the new one, so growing
	// height leaves the new blank rows at the bottom.
	srcRowStart := s.rows - copyRows
	dstRowStart := 0
	for r := 0; r < copyRows; r++ {
		srcOff := (srcRowStart + r) * s.cols
		dstOff := (dstRowStart + r) * cols
		copy(newCells[dstOff:dstOff+copyCols], s.cells[srcOff:srcOff+copyCols])
	}

	s.cells = newCells
	s.cols, s.rows = cols, rows
	s.cursorRow = minInt(s.cursorRow, rows-1)
	s.cursorCol = minInt(s.cursorCol, cols-1)
	s.scrollBottom = rows - 1
	if s.scrollTop >= rows {
		s.scrollTop = 0
	}
	s.resetTabStops()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Screen) idx(row, col int) int { return row*s.cols + col }

// Cell returns the cell at row, col (0-indexed), or the zero Cell if out
// of bounds.
func (s *Screen) Cell(row, col int) Cell {
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return Cell{}
	}
	return s.cells[s.idx(row, col)]
}

// Cols returns the grid width.
func (s *Screen) Cols() int { return s.cols }

// Rows returns the grid height.
func (s *Screen) Rows() int { return s.rows }

// CursorPos returns the 0-indexed cursor row and column.
func (s *Screen) CursorPos() (row, col int) { return s.cursorRow, s.cursorCol }

// CursorVisible reports whether the cursor should be rendered.
func (s *Screen) CursorVisible() bool { return s.cursorVisible }

// AutoWrap reports whether writing past the right margin wraps to the
// next line.
func (s *Screen) AutoWrap() bool { return s.autoWrap }

// ScrollRegion returns the current scroll region as 0-indexed, inclusive
// row bounds.
func (s *Screen) ScrollRegion() (top, bottom int) { return s.scrollTop, s.scrollBottom }

// PutChar writes a single-width rune at the cursor, honoring autowrap and
// insert mode, then advances the cursor by one column. Line-drawing
// charset translation (ESC(0) is applied before the write when active.
func (s *Screen) PutChar(r rune) {
	s.PutCharWidth(r, 1)
}

// PutCharWidth writes r at the cursor, occupying width columns (1 for
// ordinary runes, 2 for wide CJK/emoji runes as reported by a
// caller-supplied width table). The second cell of a wide rune is left
// blank as a placeholder; callers that need to skip over it when reading
// should treat a blank cell immediately after a wide rune as its tail.
func (s *Screen) PutCharWidth(r rune, width int) {
	if width < 1 {
		width = 1
	}
	if s.cursorCol+width > s.cols {
		if s.autoWrap {
			s.CarriageReturn()
			s.LineFeed()
		} else {
			s.cursorCol = s.cols - width
			if s.cursorCol < 0 {
				s.cursorCol = 0
			}
		}
	}

	if s.insertMode {
		s.InsertChars(width)
	}

	if s.activeGraphics() {
		if mapped, ok := lineDrawingChars[r]; ok {
			r = mapped
			width = 1
		}
	}

	s.cells[s.idx(s.cursorRow, s.cursorCol)] = Cell{Ch: r, Style: s.currentStyle}
	for i := 1; i < width && s.cursorCol+i < s.cols; i++ {
		s.cells[s.idx(s.cursorRow, s.cursorCol+i)] = Cell{Ch: 0, Style: s.currentStyle}
	}
	s.cursorCol += width
	if !s.autoWrap && s.cursorCol > s.cols-1 {
		s.cursorCol = s.cols - 1
	}
}

func (s *Screen) activeGraphics() bool {
	if s.charset == 0 {
		return s.g0Graphics
	}
	return s.g1Graphics
}

// CarriageReturn moves the cursor to column 0.
func (s *Screen) CarriageReturn() { s.cursorCol = 0 }

// LineFeed advances the cursor one row, scrolling the region if already
// at its bottom. If newline mode is set, it also performs a carriage
// return first (LF implies CR).
func (s *Screen) LineFeed() {
	if s.newlineMode {
		s.CarriageReturn()
	}
	if s.cursorRow >= s.scrollBottom {
		s.ScrollUp(1)
	} else {
		s.cursorRow++
	}
}

// ReverseLineFeed moves the cursor up one row, scrolling the region down
// if already at its top.
func (s *Screen) ReverseLineFeed() {
	if s.cursorRow <= s.scrollTop {
		s.ScrollDown(1)
	} else {
		s.cursorRow--
	}
}

// MoveToNextTab advances the cursor to the next tab stop, or the last
// column if none remain.
func (s *Screen) MoveToNextTab() {
	next := s.cols - 1
	for _, t := range s.tabStops {
		if t > s.cursorCol {
			next = t
			break
		}
	}
	s.cursorCol = minInt(next, s.cols-1)
}

// ScrollUp moves the scroll region's content up by n rows, filling the
// newly exposed bottom rows with blanks.
func (s *Screen) ScrollUp(n int) {
	regionHeight := s.scrollBottom - s.scrollTop + 1
	n = minInt(n, regionHeight)
	if n <= 0 {
		return
	}
	for row := s.scrollTop; row <= s.scrollBottom-n; row++ {
		srcOff := (row + n) * s.cols
		dstOff := row * s.cols
		copy(s.cells[dstOff:dstOff+s.cols], s.cells[srcOff:srcOff+s.cols])
	}
	for row := s.scrollBottom - n + 1; row <= s.scrollBottom; row++ {
		s.blankRow(row)
	}
}

// ScrollDown moves the scroll region's content down by n rows, filling
// the newly exposed top rows with blanks.
func (s *Screen) ScrollDown(n int) {
	regionHeight := s.scrollBottom - s.scrollTop + 1
	n = minInt(n, regionHeight)
	if n <= 0 {
		return
	}
	for row := s.scrollBottom; row >= s.scrollTop+n; row-- {
		srcOff := (row - n) * s.cols
		dstOff := row * s.cols
		copy(s.cells[dstOff:dstOff+s.cols], s.cells[srcOff:srcOff+s.cols])
	}
	for row := s.scrollTop; row < s.scrollTop+n; row++ {
		s.blankRow(row)
	}
}

func (s *Screen) blankRow(row int) {
	start := row * s.cols
	for col := 0; col < s.cols; col++ {
		s.cells[start+col] = blankCell()
	}
}

// MoveCursorUp/Down/Left/Right move the cursor n cells, clipping to the
// grid bounds (not the scroll region: these are direct cursor motions,
// not scrolling linefeeds).

func (s *Screen) MoveCursorUp(n int)    { s.cursorRow = maxInt(0, s.cursorRow-n) }
func (s *Screen) MoveCursorDown(n int)  { s.cursorRow = minInt(s.rows-1, s.cursorRow+n) }
func (s *Screen) MoveCursorLeft(n int)  { s.cursorCol = maxInt(0, s.cursorCol-n) }
func (s *Screen) MoveCursorRight(n int) { s.cursorCol = minInt(s.cols-1, s.cursorCol+n) }

// SetCursorPos moves the cursor to an absolute 0-indexed position,
// clipping to the grid.
func (s *Screen) SetCursorPos(row, col int) {
	s.cursorRow = clamp(row, 0, s.rows-1)
	s.cursorCol = clamp(col, 0, s.cols-1)
}

func (s *Screen) SetCursorRow(row int) { s.cursorRow = clamp(row, 0, s.rows-1) }
func (s *Screen) SetCursorCol(col int) { s.cursorCol = clamp(col, 0, s.cols-1) }

// EraseBelow clears from the cursor to the end of the screen, inclusive
// of the rest of the current line.
func (s *Screen) EraseBelow() {
	s.EraseLineRight()
	for row := s.cursorRow + 1; row < s.rows; row++ {
		s.blankRow(row)
	}
}

// EraseAbove clears from the start of the screen to the cursor, inclusive
// of the rest of the current line.
func (s *Screen) EraseAbove() {
	s.EraseLineLeft()
	for row := 0; row < s.cursorRow; row++ {
		s.blankRow(row)
	}
}

// EraseAll clears every cell on the screen.
func (s *Screen) EraseAll() { s.fillBlank() }

// EraseScrollback is a no-op: this Screen holds only the visible grid,
// not scrollback history, which is a session-level concern.
func (s *Screen) EraseScrollback() {}

func (s *Screen) EraseLineRight() {
	for col := s.cursorCol; col < s.cols; col++ {
		s.cells[s.idx(s.cursorRow, col)] = blankCell()
	}
}

func (s *Screen) EraseLineLeft() {
	for col := 0; col <= s.cursorCol && col < s.cols; col++ {
		s.cells[s.idx(s.cursorRow, col)] = blankCell()
	}
}

func (s *Screen) EraseLine() { s.blankRow(s.cursorRow) }

func (s *Screen) EraseChars(n int) {
	end := minInt(s.cursorCol+n, s.cols)
	for col := s.cursorCol; col < end; col++ {
		s.cells[s.idx(s.cursorRow, col)] = blankCell()
	}
}

// InsertLines inserts n blank lines at the cursor row within the scroll
// region, pushing existing lines down (and off the bottom of the
// region). A no-op if the cursor sits outside the current region.
func (s *Screen) InsertLines(n int) {
	if s.cursorRow < s.scrollTop || s.cursorRow > s.scrollBottom {
		return
	}
	oldTop := s.scrollTop
	s.scrollTop = s.cursorRow
	s.ScrollDown(n)
	s.scrollTop = oldTop
}

// DeleteLines deletes n lines at the cursor row within the scroll region,
// pulling lines below up. A no-op if the cursor sits outside the region.
func (s *Screen) DeleteLines(n int) {
	if s.cursorRow < s.scrollTop || s.cursorRow > s.scrollBottom {
		return
	}
	oldTop := s.scrollTop
	s.scrollTop = s.cursorRow
	s.ScrollUp(n)
	s.scrollTop = oldTop
}

// InsertChars shifts the row's content right by n cells from the cursor,
// discarding what falls off the right edge and blanking the opened gap.
func (s *Screen) InsertChars(n int) {
	rowStart := s.cursorRow * s.cols
	cursor := s.cursorCol
	if n <= 0 || cursor >= s.cols {
		return
	}
	for col := s.cols - 1; col >= cursor+n; col-- {
		s.cells[rowStart+col] = s.cells[rowStart+col-n]
	}
	for col := cursor; col < minInt(cursor+n, s.cols); col++ {
		s.cells[rowStart+col] = blankCell()
	}
}

// DeleteChars shifts the row's content left by n cells from the cursor,
// blanking the vacated cells at the end of the row.
func (s *Screen) DeleteChars(n int) {
	rowStart := s.cursorRow * s.cols
	cursor := s.cursorCol
	if n <= 0 || cursor >= s.cols {
		return
	}
	n = minInt(n, s.cols-cursor)
	for col := cursor; col < s.cols-n; col++ {
		s.cells[rowStart+col] = s.cells[rowStart+col+n]
	}
	for col := s.cols - n; col < s.cols; col++ {
		s.cells[rowStart+col] = blankCell()
	}
}

// Style operations mutate the style applied to subsequently written
// cells; they never touch cells already on the grid.

func (s *Screen) ResetStyle()             { s.currentStyle = CellStyle{} }
func (s *Screen) SetBold(v bool)          { s.currentStyle.Bold = v }
func (s *Screen) SetDim(v bool)           { s.currentStyle.Dim = v }
func (s *Screen) SetItalic(v bool)        { s.currentStyle.Italic = v }
func (s *Screen) SetUnderline(v bool)     { s.currentStyle.Underline = v }
func (s *Screen) SetBlink(v bool)         { s.currentStyle.Blink = v }
func (s *Screen) SetInverse(v bool)       { s.currentStyle.Inverse = v }
func (s *Screen) SetHidden(v bool)        { s.currentStyle.Hidden = v }
func (s *Screen) SetStrikethrough(v bool) { s.currentStyle.Strikethrough = v }
func (s *Screen) SetFGColor(c Color)      { s.currentStyle.FG = c }
func (s *Screen) SetBGColor(c Color)      { s.currentStyle.BG = c }
func (s *Screen) CurrentStyle() CellStyle { return s.currentStyle }

// SetScrollRegion sets the scroll region to 0-indexed, inclusive bounds
// and homes the cursor, matching DECSTBM.
func (s *Screen) SetScrollRegion(top, bottom int) {
	top = clamp(top, 0, s.rows-1)
	bottom = maxInt(clamp(bottom, 0, s.rows-1), top)
	s.scrollTop = top
	s.scrollBottom = bottom
	s.cursorRow = 0
	s.cursorCol = 0
}

// SaveCursor remembers the cursor position and current style. A second
// save overwrites the first; there is no stack, matching real hardware.
func (s *Screen) SaveCursor() {
	s.saved = savedCursor{row: s.cursorRow, col: s.cursorCol, style: s.currentStyle}
}

// RestoreCursor restores the last saved cursor position and style.
func (s *Screen) RestoreCursor() {
	s.cursorRow = clamp(s.saved.row, 0, s.rows-1)
	s.cursorCol = clamp(s.saved.col, 0, s.cols-1)
	s.currentStyle = s.saved.style
}

func (s *Screen) SetCursorVisible(v bool) { s.cursorVisible = v }
func (s *Screen) SetAutoWrap(v bool)      { s.autoWrap = v }
func (s *Screen) SetInsertMode(v bool)    { s.insertMode = v }
func (s *Screen) SetNewlineMode(v bool)   { s.newlineMode = v }

// SetCharset selects the active character set slot (0 for G0, 1 for G1);
// SO/SI (0x0E/0x0F) toggle between them.
func (s *Screen) SetCharset(charset int) { s.charset = charset }

// DesignateGraphics marks slot (0 for G0, 1 for G1) as the DEC special
// graphics line-drawing set (ESC(0) or plain ASCII (ESC(B).
func (s *Screen) DesignateGraphics(slot int, graphics bool) {
	if slot == 0 {
		s.g0Graphics = graphics
	} else {
		s.g1Graphics = graphics
	}
}

// LineText returns row's content as a string with trailing blanks
// trimmed. This is data extraction for logging and tests, not rendering:
// it never touches color or style.
func (s *Screen) LineText(row int) string {
	if row < 0 || row >= s.rows {
		return ""
	}
	var b strings.Builder
	start := row * s.cols
	for col := 0; col < s.cols; col++ {
		b.WriteRune(s.cells[start+col].Ch)
	}
	return strings.TrimRight(b.String(), " \x00")
}

// Content returns every row's LineText joined by newlines.
func (s *Screen) Content() string {
	lines := make([]string, s.rows)
	for row := 0; row < s.rows; row++ {
		lines[row] = s.LineText(row)
	}
	return strings.Join(lines, "\n")
}

// lineDrawingChars maps the DEC special graphics character set (invoked
// via ESC(0) onto the Unicode box-drawing and symbol code points real
// terminals render it as.
var lineDrawingChars = map[rune]rune{
	'`': '◆', // diamond
	'a': '▒', // checkerboard
	'b': '␉', // HT symbol
	'c': '␌', // FF symbol
	'd': '␍', // CR symbol
	'e': '␊', // LF symbol
	'f': '°', // degree
	'g': '±', // plus/minus
	'h': '␤', // NL symbol
	'i': '␋', // VT symbol
	'j': '┘', // ┘
	'k': '┐', // ┐
	'l': '┌', // ┌
	'm': '└', // └
	'n': '┼', // ┼
	'o': '⎺', // scan line 1
	'p': '⎻', // scan line 3
	'q': '─', // ─
	'r': '⎼', // scan line 7
	's': '⎽', // scan line 9
	't': '├', // ├
	'u': '┤', // ┤
	'v': '┴', // ┴
	'w': '┬', // ┬
	'x': '│', // │
	'y': '≤', // ≤
	'z': '≥', // ≥
	'{': 'π', // π
	'|': '≠', // ≠
	'}': '£', // £
	'~': '·', // ·
}
