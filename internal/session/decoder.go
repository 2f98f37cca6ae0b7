package session

import (
	"time"

	"pkt.systems/termbridge/internal/codec"
	"pkt.systems/termbridge/internal/modbus"
	"pkt.systems/termbridge/schema"
)

// DecoderKind selects the framing/protocol decoder a dispatcher applies to
// its inbound byte stream.
type DecoderKind string

const (
	DecoderNone         DecoderKind = "none"
	DecoderSLIP         DecoderKind = "slip"
	DecoderCOBS         DecoderKind = "cobs"
	DecoderSTXETX       DecoderKind = "stx_etx"
	DecoderLengthPrefix DecoderKind = "length_prefix"
	DecoderLine         DecoderKind = "line"
	DecoderModbusRTU    DecoderKind = "modbus_rtu"
	DecoderModbusTCP    DecoderKind = "modbus_tcp"
	DecoderModbusASCII  DecoderKind = "modbus_ascii"
)

// DecoderConfig parameterizes a decoder. Only the fields relevant to Kind
// matter.
type DecoderConfig struct {
	Kind DecoderKind

	Stx, Etx byte // STX/ETX framing

	LengthPrefixWidth     codec.PrefixWidth
	LengthPrefixBigEndian bool
	MaxPayload            int

	LineDelimiter codec.LineDelimiter

	// ModbusInterFrameTimeout is the silence window that ends an RTU frame.
	// Zero uses a conservative software default; a caller deriving it from
	// baud rate per the 3.5-character-time convention should set it
	// explicitly.
	ModbusInterFrameTimeout time.Duration
}

// DefaultDecoderConfig returns a no-op decoder: sessions start with framing
// disabled until SetDecoder configures one.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Kind:                    DecoderNone,
		Stx:                     0x02,
		Etx:                     0x03,
		LengthPrefixWidth:       codec.PrefixWidth16,
		LengthPrefixBigEndian:   true,
		LineDelimiter:           codec.LineLf,
		ModbusInterFrameTimeout: 4 * time.Millisecond,
	}
}

// decoder turns a session's inbound byte stream into decoded protocol
// packets. Most decoders extract a payload as soon as its delimiter
// completes; Modbus RTU has no delimiter and instead relies on the
// dispatcher's timer calling idle once the configured inter-frame silence
// window has elapsed since the last byte.
type decoder interface {
	feed(data []byte) ([]schema.Packet, []error)
	idle(now, lastByteAt time.Time) ([]schema.Packet, []error)
}

func newDecoder(cfg DecoderConfig) decoder {
	switch cfg.Kind {
	case DecoderSLIP:
		return &framingDecoder{name: "slip", feedFn: (&codec.SlipDecoder{}).Feed}
	case DecoderCOBS:
		return &framingDecoder{name: "cobs", feedFn: (&codec.CobsDecoder{}).Feed}
	case DecoderSTXETX:
		stx, etx := cfg.Stx, cfg.Etx
		if stx == 0 && etx == 0 {
			stx, etx = 0x02, 0x03
		}
		f := codec.NewStxEtxFraming(stx, etx)
		return &framingDecoder{name: "stx_etx", feedFn: noErrFeed(f.Feed)}
	case DecoderLengthPrefix:
		width := cfg.LengthPrefixWidth
		if width == 0 {
			width = codec.PrefixWidth16
		}
		f := codec.NewLengthPrefixFraming(width, cfg.LengthPrefixBigEndian, cfg.MaxPayload)
		return &framingDecoder{name: "length_prefix", feedFn: f.Feed}
	case DecoderLine:
		f := codec.NewLineFraming(cfg.LineDelimiter)
		return &framingDecoder{name: "line", feedFn: noErrFeed(f.Feed)}
	case DecoderModbusASCII:
		f := codec.NewLineFraming(codec.LineCrLf)
		return &framingDecoder{name: "modbus_ascii", feedFn: noErrFeed(f.Feed), decode: modbus.DecodeASCII}
	case DecoderModbusTCP:
		return &modbusTCPDecoder{}
	case DecoderModbusRTU:
		timeout := cfg.ModbusInterFrameTimeout
		if timeout <= 0 {
			timeout = 4 * time.Millisecond
		}
		return &modbusRTUDecoder{interFrame: timeout}
	default:
		return noopDecoder{}
	}
}

type noopDecoder struct{}

func (noopDecoder) feed([]byte) ([]schema.Packet, []error)              { return nil, nil }
func (noopDecoder) idle(time.Time, time.Time) ([]schema.Packet, []error) { return nil, nil }

func noErrFeed(f func([]byte) [][]byte) func([]byte) ([][]byte, error) {
	return func(stream []byte) ([][]byte, error) { return f(stream), nil }
}

// framingDecoder adapts a stateful codec framer into the decoder
// interface, packaging every extracted frame as a Packet under name and,
// when decode is set, running each frame through a protocol decoder whose
// fields land in the Packet's Metadata.
type framingDecoder struct {
	name   string
	feedFn func([]byte) ([][]byte, error)
	decode func([]byte) (modbus.Frame, error)
}

func (f *framingDecoder) feed(data []byte) ([]schema.Packet, []error) {
	frames, err := f.feedFn(data)
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	packets, decodeErrs := f.toPackets(frames)
	errs = append(errs, decodeErrs...)
	return packets, errs
}

func (f *framingDecoder) idle(time.Time, time.Time) ([]schema.Packet, []error) { return nil, nil }

func (f *framingDecoder) toPackets(frames [][]byte) ([]schema.Packet, []error) {
	if len(frames) == 0 {
		return nil, nil
	}
	var out []schema.Packet
	var errs []error
	for _, frame := range frames {
		p, err := f.packet(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errs
}

func (f *framingDecoder) packet(frame []byte) (schema.Packet, error) {
	p := schema.Packet{
		Timestamp:    time.Now(),
		Direction:    schema.DirectionIn,
		Data:         frame,
		ProtocolName: f.name,
	}
	if f.decode != nil {
		mf, err := f.decode(frame)
		if err != nil {
			return schema.Packet{}, err
		}
		p.Metadata = map[string]any{"kind": string(mf.Kind), "unit_id": mf.SlaveID, "function": mf.Function}
	}
	return p, nil
}

// modbusTCPDecoder frames MBAP messages by their declared length field
// (bytes 4-5) rather than a delimiter, mirroring modbus.DecodeTCP's own
// framing logic.
type modbusTCPDecoder struct {
	buf []byte
}

func (d *modbusTCPDecoder) feed(data []byte) ([]schema.Packet, []error) {
	d.buf = append(d.buf, data...)
	var packets []schema.Packet
	var errs []error
	for {
		if len(d.buf) < 6 {
			return packets, errs
		}
		length := int(d.buf[4])<<8 | int(d.buf[5])
		total := 6 + length
		if len(d.buf) < total {
			return packets, errs
		}
		frame := append([]byte(nil), d.buf[:total]...)
		d.buf = d.buf[total:]
		_, mf, err := modbus.DecodeTCP(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p := schema.Packet{Timestamp: time.Now(), Direction: schema.DirectionIn, Data: frame, ProtocolName: "modbus_tcp"}
		p.Metadata = map[string]any{"kind": string(mf.Kind), "unit_id": mf.SlaveID, "function": mf.Function}
		packets = append(packets, p)
	}
}

func (d *modbusTCPDecoder) idle(time.Time, time.Time) ([]schema.Packet, []error) { return nil, nil }

// modbusRTUDecoder accumulates bytes until the dispatcher's timer observes
// interFrame silence, then decodes the accumulated bytes as a single RTU
// frame. This mirrors the wire protocol's own framing rule: there is no
// delimiter, only the 3.5-character-time gap between frames.
type modbusRTUDecoder struct {
	buf        []byte
	interFrame time.Duration
}

func (d *modbusRTUDecoder) feed(data []byte) ([]schema.Packet, []error) {
	d.buf = append(d.buf, data...)
	return nil, nil
}

func (d *modbusRTUDecoder) idle(now, lastByteAt time.Time) ([]schema.Packet, []error) {
	if len(d.buf) == 0 || now.Sub(lastByteAt) < d.interFrame {
		return nil, nil
	}
	frame := d.buf
	d.buf = nil
	mf, err := modbus.DecodeRTU(frame)
	if err != nil {
		return nil, []error{err}
	}
	p := schema.Packet{
		Timestamp:    now,
		Direction:    schema.DirectionIn,
		Data:         frame,
		ProtocolName: "modbus_rtu",
		Metadata:     map[string]any{"kind": string(mf.Kind), "unit_id": mf.SlaveID, "function": mf.Function},
	}
	return []schema.Packet{p}, nil
}
