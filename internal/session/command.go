package session

import (
	"time"

	"pkt.systems/termbridge/internal/terminal"
	"pkt.systems/termbridge/internal/transport"
	"pkt.systems/termbridge/schema"
)

// CommandKind discriminates Command's variant.
type CommandKind string

const (
	CmdSend           CommandKind = "send"
	CmdSetModemLine   CommandKind = "set_modem_line"
	CmdSendBreak      CommandKind = "send_break"
	CmdAddTrigger     CommandKind = "add_trigger"
	CmdRemoveTrigger  CommandKind = "remove_trigger"
	CmdDisconnect     CommandKind = "disconnect"
	CmdReconnect      CommandKind = "reconnect"
	CmdAttachTerminal CommandKind = "attach_terminal"
	CmdSetDecoder     CommandKind = "set_decoder"
)

// Command is one instruction a caller submits to a session's Dispatcher.
// Commands are serialised through a single channel and applied strictly
// after the inbound chunk the dispatcher is currently processing finishes,
// before the next chunk is read — the well-defined interleaving point with
// the inbound stream.
type Command struct {
	Kind CommandKind

	SendData []byte // CmdSend

	ModemLine ModemLineTarget // CmdSetModemLine
	LineState bool            // CmdSetModemLine

	BreakDuration time.Duration // CmdSendBreak

	Trigger   schema.Trigger   // CmdAddTrigger
	TriggerID schema.TriggerID // CmdRemoveTrigger

	Terminal *terminal.Emulator // CmdAttachTerminal

	Decoder DecoderConfig // CmdSetDecoder

	reply chan error
}

// ModemLineTarget re-exports transport.ModemLine so callers outside
// internal/transport don't need to import it just to build a Command.
type ModemLineTarget = transport.ModemLine

// NewCommand seeds the reply channel every command carries; Dispatcher.Submit
// blocks on it for the synchronous result.
func NewCommand(kind CommandKind) Command {
	return Command{Kind: kind, reply: make(chan error, 1)}
}
