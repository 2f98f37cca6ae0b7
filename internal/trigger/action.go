package trigger

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/termbridge/schema"
)

// Sender writes bytes to the session's outbound path. Send/SendText
// actions must be delivered before any further BytesIn event from the
// same receive chunk; callers satisfy that ordering by running actions
// synchronously on the dispatcher goroutine, as Run does.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// Notifier surfaces a Notify action to whatever observes session events.
type Notifier func(id schema.TriggerID, text string)

// Run executes action on trigger's behalf: Send/SendText write through
// sender, Log writes a structured log line, Notify calls notify, and
// Chain runs its links in order. A link's failure is logged and does not
// stop the remaining links.
func Run(ctx context.Context, id schema.TriggerID, action schema.Action, sender Sender, notify Notifier, log pslog.Logger) {
	switch action.Kind {
	case schema.ActionSend:
		if err := sender.Send(ctx, action.Bytes); err != nil {
			log.Warn("trigger action send failed", "trigger", id, "err", err)
		}
	case schema.ActionSendText:
		if err := sender.Send(ctx, []byte(action.Text)); err != nil {
			log.Warn("trigger action send_text failed", "trigger", id, "err", err)
		}
	case schema.ActionLog:
		log.Info("trigger fired", "trigger", id, "text", action.Text)
	case schema.ActionNotify:
		if notify != nil {
			notify(id, action.Text)
		}
	case schema.ActionChain:
		for _, link := range action.Chain {
			Run(ctx, id, link, sender, notify, log)
		}
	default:
		log.Warn("trigger action unknown kind", "trigger", id, "kind", action.Kind)
	}
}
