package terminal

// ColorKind discriminates Color's variant.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorNamed
	ColorIndexed
	ColorRGB
)

// NamedColor is one of the 16 standard ANSI colors (8 normal + 8 bright).
type NamedColor uint8

const (
	Black NamedColor = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
	BrightBlack
	BrightRed
	BrightGreen
	BrightYellow
	BrightBlue
	BrightMagenta
	BrightCyan
	BrightWhite
)

// NamedColorFromANSI maps an SGR foreground/background offset (0-15, after
// subtracting the 30/40/90/100 base) to its NamedColor.
func NamedColorFromANSI(n uint8) NamedColor {
	if n > 15 {
		return White
	}
	return NamedColor(n)
}

// Color is a tagged union over the four ways SGR can specify a color:
// terminal default, one of the 16 named colors, an index into the
// 256-color palette, or a direct 24-bit RGB triple. Only Kind's matching
// fields are meaningful; converting an Indexed or RGB color to a
// displayable pixel value is a rendering concern this package does not
// implement.
type Color struct {
	Kind    ColorKind
	Named   NamedColor
	Indexed uint8
	R, G, B uint8
}

// DefaultColor is the terminal's default foreground/background.
var DefaultColor = Color{Kind: ColorDefault}

// NamedColorValue constructs a Color from a NamedColor.
func NamedColorValue(n NamedColor) Color { return Color{Kind: ColorNamed, Named: n} }

// IndexedColor constructs a Color from a 256-color palette index.
func IndexedColor(idx uint8) Color { return Color{Kind: ColorIndexed, Indexed: idx} }

// RGBColor constructs a Color from a 24-bit RGB triple.
func RGBColor(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// CellStyle packs the SGR attributes and colors that apply to a single
// cell.
type CellStyle struct {
	FG            Color
	BG            Color
	Bold          bool
	Dim           bool
	Italic        bool
	Underline     bool
	Blink         bool
	Inverse       bool
	Hidden        bool
	Strikethrough bool
}

// EffectiveFG returns the foreground color to render with, swapping fg/bg
// when Inverse is set.
func (s CellStyle) EffectiveFG() Color {
	if s.Inverse {
		return s.BG
	}
	return s.FG
}

// EffectiveBG returns the background color to render with, swapping fg/bg
// when Inverse is set.
func (s CellStyle) EffectiveBG() Color {
	if s.Inverse {
		return s.FG
	}
	return s.BG
}

// Cell is a single grid position: a rune plus the style it was written
// with. The zero Cell is an empty (space) cell in the default style.
type Cell struct {
	Ch    rune
	Style CellStyle
}

// IsEmpty reports whether c holds no visible content: a space (or the
// zero rune) in the default, unstyled state.
func (c Cell) IsEmpty() bool {
	return (c.Ch == 0 || c.Ch == ' ') && c.Style == CellStyle{}
}

func blankCell() Cell {
	return Cell{Ch: ' '}
}
