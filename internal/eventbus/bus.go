// Package eventbus implements a session's event broadcast: a single
// producer (the session dispatcher) fanning out to independent subscriber
// cursors. Byte/protocol events are lossy under backpressure;
// TriggerFired/StateChanged events are durable and delivered reliably up to
// a bounded queue depth, past which the subscriber is marked degraded and
// finally dropped.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/termbridge/schema"
)

type subscriber struct {
	ch       chan schema.SessionEvent
	degraded bool
	inLag    bool // true while the current lag episode has already been reported
}

// Bus fans out one session's events to its subscribers.
type Bus struct {
	mu       sync.Mutex
	sessID   schema.SessionID
	subs     map[*subscriber]struct{}
	log      pslog.Logger
	lagMax   int
}

// New constructs a Bus for the given session. lagMax bounds how many
// undelivered events (of either lane) a subscriber may accumulate before
// backpressure kicks in; DefaultSubscriberLagMax is used if lagMax <= 0.
func New(sessID schema.SessionID, lagMax int, logger pslog.Logger) *Bus {
	if lagMax <= 0 {
		lagMax = schema.DefaultSubscriberLagMax
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		sessID: sessID,
		subs:   make(map[*subscriber]struct{}),
		log:    logger,
		lagMax: lagMax,
	}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function that unregisters it and closes the channel.
func (b *Bus) Subscribe() (<-chan schema.SessionEvent, func()) {
	sub := &subscriber{ch: make(chan schema.SessionEvent, b.lagMax)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.With("session", b.sessID).Debug("eventbus subscribe", "subs", count)
	return sub.ch, func() {
		b.mu.Lock()
		_, registered := b.subs[sub]
		delete(b.subs, sub)
		b.mu.Unlock()
		if registered { // a dropped subscriber's channel is already closed
			close(sub.ch)
		}
	}
}

// Publish delivers event to every subscriber, applying the durable or lossy
// lane policy depending on event.Durable().
func (b *Bus) Publish(event schema.SessionEvent) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if event.Durable() {
			b.publishDurable(sub, event)
		} else {
			b.publishLossy(sub, event)
		}
	}
}

// publishDurable never drops a durable event by evicting older ones; a
// subscriber that cannot keep up is instead marked degraded and, on
// persistent failure, dropped with a final SubscriberDropped notice.
func (b *Bus) publishDurable(sub *subscriber, event schema.SessionEvent) {
	select {
	case sub.ch <- event:
		return
	default:
	}
	if sub.degraded {
		b.dropSubscriber(sub)
		return
	}
	sub.degraded = true
	b.log.With("session", b.sessID).Warn("subscriber degraded on durable backlog")
}

// publishLossy evicts the oldest queued event to make room for the newest,
// and reports at most one SubscriberLag error per contiguous lag episode.
func (b *Bus) publishLossy(sub *subscriber, event schema.SessionEvent) {
	select {
	case sub.ch <- event:
		sub.inLag = false
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- event:
	default:
	}
	if !sub.inLag {
		sub.inLag = true
		b.emitLagNotice(sub)
	}
}

func (b *Bus) emitLagNotice(sub *subscriber) {
	notice := schema.SessionEvent{Kind: schema.EventError, ErrKind: schema.ErrKindSubscriberLag, Message: "subscriber lagging, dropping oldest events"}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- notice:
	default:
	}
	b.log.With("session", b.sessID).Trace("eventbus subscriber lag")
}

// dropSubscriber closes a subscriber whose durable backlog persisted across
// two publish attempts. It never evicts an already-queued durable event to
// make room: the drop notice is delivered only if the queue has space,
// closing the channel either way.
func (b *Bus) dropSubscriber(sub *subscriber) {
	notice := schema.SessionEvent{Kind: schema.EventError, ErrKind: schema.ErrKindSubscriberDrop, Message: "subscriber dropped after durable backlog exceeded bound"}
	select {
	case sub.ch <- notice:
	default:
	}
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	close(sub.ch)
	b.log.With("session", b.sessID).Warn("eventbus subscriber dropped")
}
