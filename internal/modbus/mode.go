package modbus

// Mode selects a Modbus wire encoding.
type Mode string

const (
	ModeRTU   Mode = "rtu"
	ModeTCP   Mode = "tcp"
	ModeASCII Mode = "ascii"
)

// Decode dispatches to the mode-appropriate decoder. TCP frames carry
// their own header, which is discarded here; callers needing the MBAP
// transaction ID should call DecodeTCP directly.
func Decode(mode Mode, frame []byte) (Frame, error) {
	switch mode {
	case ModeRTU:
		return DecodeRTU(frame)
	case ModeTCP:
		_, f, err := DecodeTCP(frame)
		return f, err
	case ModeASCII:
		return DecodeASCII(frame)
	default:
		return Frame{}, newError(ErrUnknownMode, "unknown mode %q", mode)
	}
}
