package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/termbridge/internal/eventbus"
	"pkt.systems/termbridge/internal/logx"
	"pkt.systems/termbridge/internal/terminal"
	"pkt.systems/termbridge/internal/transport"
	"pkt.systems/termbridge/internal/trigger"
	"pkt.systems/termbridge/schema"
)

// tickInterval is the minimum quantum for trigger-timeout and decoder-idle
// checks.
const tickInterval = 10 * time.Millisecond

// rxResult is one outcome of a transport.Receive call, relayed from the
// dispatcher's background receive goroutine into its single-threaded loop.
type rxResult struct {
	data []byte
	err  error
}

// Dispatcher is the single-threaded coordinator for one session: sole
// writer of session state, sole mutator of the rx buffer, sole producer on
// the event bus. Every other goroutine interacts with it only through
// Command values submitted via Submit and events read from Subscribe.
type Dispatcher struct {
	id     schema.SessionID
	cfg    schema.SessionConfig
	tr     transport.Transport
	bus    *eventbus.Bus
	engine *trigger.Engine
	rx     *RxBuffer
	dec    decoder
	term   *terminal.Emulator
	log    pslog.Logger

	cmds chan Command
	done chan struct{}

	state      schema.SessionState
	lastByteAt time.Time
}

// New constructs a dispatcher for cfg. It performs no I/O; call Run to
// connect and start processing.
func New(ctx context.Context, cfg schema.SessionConfig) (*Dispatcher, error) {
	cfg, err := schema.NormalizeSessionConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	tr, err := transport.New(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return newDispatcher(ctx, cfg, tr)
}

// newDispatcher builds a Dispatcher around an already-constructed
// transport, letting tests substitute transport.Loopback for a real
// driver.
func newDispatcher(ctx context.Context, cfg schema.SessionConfig, tr transport.Transport) (*Dispatcher, error) {
	engine, err := trigger.NewEngine(cfg.Triggers)
	if err != nil {
		return nil, err
	}
	id := schema.SessionID(uuid.NewString())
	log := logx.WithSession(ctx, id)
	return &Dispatcher{
		id:     id,
		cfg:    cfg,
		tr:     tr,
		bus:    eventbus.New(id, cfg.SubscriberLagMax, log),
		engine: engine,
		rx:     NewRxBuffer(cfg.RxBufferCapacity),
		dec:    newDecoder(DefaultDecoderConfig()),
		term:   terminal.NewEmulator(terminal.DefaultSize),
		log:    log,
		cmds:   make(chan Command, 32),
		done:   make(chan struct{}),
		state:  schema.SessionCreated,
	}, nil
}

// ID returns the session's assigned identifier.
func (d *Dispatcher) ID() schema.SessionID { return d.id }

// State reports the dispatcher's current coordinator-level state.
func (d *Dispatcher) State() schema.SessionState { return d.state }

// Subscribe registers a new event consumer; see eventbus.Bus.Subscribe.
func (d *Dispatcher) Subscribe() (<-chan schema.SessionEvent, func()) {
	return d.bus.Subscribe()
}

// Submit enqueues cmd and blocks for its synchronous result, or returns
// ErrCancelled if ctx is cancelled first, or ErrNotConnected once the
// dispatcher loop has exited.
func (d *Dispatcher) Submit(ctx context.Context, cmd Command) error {
	if cmd.reply == nil {
		cmd.reply = make(chan error, 1)
	}
	select {
	case <-d.done:
		return schema.ErrNotConnected
	default:
	}
	select {
	case d.cmds <- cmd:
	case <-ctx.Done():
		return schema.ErrCancelled
	case <-d.done:
		return schema.ErrNotConnected
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return schema.ErrCancelled
	case <-d.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return schema.ErrNotConnected
		}
	}
}

// Run drives the dispatcher loop until ctx is cancelled, the session is
// disconnected by command, or reconnection gives up. It always tears down
// the underlying transport before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	if !d.connect(ctx) {
		return
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	rxCh := d.startReceiving(ctx)

	for {
		select {
		case <-ctx.Done():
			d.tr.Disconnect(context.Background())
			d.setState(schema.SessionDisconnected, "context cancelled")
			return

		case cmd, ok := <-d.cmds:
			if !ok {
				return
			}
			stop, restartRx := d.handleCommand(ctx, cmd)
			if stop {
				return
			}
			if restartRx {
				rxCh = d.startReceiving(ctx)
			}

		case res, ok := <-rxCh:
			if !ok {
				continue
			}
			if res.err != nil {
				if d.handleReceiveError(ctx, res.err) {
					return
				}
				rxCh = d.startReceiving(ctx)
				continue
			}
			d.handleInbound(ctx, res.data)

		case now := <-ticker.C:
			d.handleTick(ctx, now)
		}
	}
}

func (d *Dispatcher) connect(ctx context.Context) bool {
	d.setState(schema.SessionConnecting, "")
	cctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := d.tr.Connect(cctx); err != nil {
		d.setState(schema.SessionFailed, err.Error())
		return false
	}
	d.lastByteAt = time.Now()
	d.setState(schema.SessionConnected, "")
	d.bus.Publish(schema.SessionEvent{Kind: schema.EventConnected})
	return true
}

// startReceiving spawns the background goroutine that repeatedly calls
// transport.Receive and relays each chunk (or terminal error) to ch. It
// exits on the first error or when ctx is cancelled.
func (d *Dispatcher) startReceiving(ctx context.Context) chan rxResult {
	ch := make(chan rxResult, 1)
	go func() {
		for {
			data, err := d.tr.Receive(ctx)
			if err != nil {
				select {
				case ch <- rxResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case ch <- rxResult{data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// handleReceiveError decides, per the session's reconnect policy, whether
// to retry with exponential backoff or give up. It returns true when the
// dispatcher loop should exit.
func (d *Dispatcher) handleReceiveError(ctx context.Context, err error) bool {
	d.log.Warn("transport receive failed", "error", err)
	d.tr.Disconnect(ctx)

	if !d.cfg.Reconnect.Enabled {
		d.setState(schema.SessionDisconnected, err.Error())
		d.bus.Publish(schema.SessionEvent{Kind: schema.EventDisconnected, Reason: err.Error()})
		return true
	}

	d.setState(schema.SessionReconnecting, err.Error())
	policy := d.cfg.Reconnect
	attempt := 0
	for attempt < policy.MaxAttempts {
		select {
		case <-ctx.Done():
			return true
		case cmd, ok := <-d.cmds:
			if !ok {
				return true
			}
			if cmd.Kind == CmdDisconnect {
				cmd.reply <- nil
				d.setState(schema.SessionDisconnected, "disconnected while reconnecting")
				return true
			}
			cmd.reply <- schema.ErrNotConnected
			continue
		case <-time.After(backoffDelay(policy, attempt)):
		}
		attempt++
		if err := d.tr.Connect(ctx); err == nil {
			d.lastByteAt = time.Now()
			d.setState(schema.SessionConnected, "")
			d.bus.Publish(schema.SessionEvent{Kind: schema.EventConnected})
			return false
		}
	}
	d.setState(schema.SessionFailed, "max reconnect attempts exceeded")
	return true
}

// backoffDelay computes the base*2^n exponential backoff clamped to
// MaxDelay.
func backoffDelay(policy schema.ReconnectPolicy, attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30 // avoid overflow in the shift below
	}
	delay := policy.BaseDelay * time.Duration(int64(1)<<uint(attempt))
	if delay <= 0 || delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

func (d *Dispatcher) handleInbound(ctx context.Context, data []byte) {
	now := time.Now()
	d.lastByteAt = now
	d.engine.NotifyBytesReceived()

	retention := d.engine.RetentionLen()
	d.rx.Append(data, retention)
	d.bus.Publish(schema.SessionEvent{Kind: schema.EventBytesIn, Bytes: data})

	if d.term != nil {
		d.term.Process(data)
	}

	window := d.rx.Tail(retention + len(data))
	for _, t := range d.engine.Evaluate(window) {
		d.fireTrigger(ctx, t)
	}

	packets, errs := d.dec.feed(data)
	d.publishDecoded(packets, errs)
}

func (d *Dispatcher) handleTick(ctx context.Context, now time.Time) {
	fired := d.engine.CheckTimeouts(now, d.lastByteAt, d.state == schema.SessionConnected)
	for _, t := range fired {
		d.fireTrigger(ctx, t)
	}
	packets, errs := d.dec.idle(now, d.lastByteAt)
	d.publishDecoded(packets, errs)
}

func (d *Dispatcher) publishDecoded(packets []schema.Packet, errs []error) {
	for _, p := range packets {
		d.bus.Publish(schema.SessionEvent{Kind: schema.EventProtocolDecoded, Packet: p})
	}
	for _, e := range errs {
		d.bus.Publish(schema.SessionEvent{Kind: schema.EventError, ErrKind: schema.ErrKindFraming, Message: e.Error()})
	}
}

func (d *Dispatcher) fireTrigger(ctx context.Context, t schema.Trigger) {
	d.bus.Publish(schema.SessionEvent{Kind: schema.EventTriggerFired, TriggerID: t.ID})
	if err := d.runAction(ctx, t.Action); err != nil {
		d.log.Warn("trigger action failed", "trigger", t.ID, "error", err)
		d.bus.Publish(schema.SessionEvent{Kind: schema.EventError, ErrKind: schema.ErrKindTrigger, Message: err.Error()})
	}
}

func (d *Dispatcher) runAction(ctx context.Context, a schema.Action) error {
	switch a.Kind {
	case schema.ActionSend:
		_, err := d.tr.Send(ctx, a.Bytes)
		return err
	case schema.ActionSendText:
		_, err := d.tr.Send(ctx, []byte(a.Text))
		return err
	case schema.ActionLog:
		d.log.Info("trigger action", "message", a.Text)
		return nil
	case schema.ActionNotify:
		d.log.Info("trigger notify", "message", a.Text)
		return nil
	case schema.ActionChain:
		var firstErr error
		for _, sub := range a.Chain {
			if err := d.runAction(ctx, sub); err != nil {
				d.log.Warn("trigger chain link failed", "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	default:
		return nil
	}
}

// handleCommand applies cmd and reports its synchronous result. stop tells
// Run to exit; restartRx tells Run to start a fresh receive goroutine
// because the transport was disconnected and reconnected within this call.
func (d *Dispatcher) handleCommand(ctx context.Context, cmd Command) (stop, restartRx bool) {
	switch cmd.Kind {
	case CmdSend:
		if d.state != schema.SessionConnected {
			cmd.reply <- schema.ErrNotConnected
			return false, false
		}
		_, err := d.tr.Send(ctx, cmd.SendData)
		if err == nil {
			d.bus.Publish(schema.SessionEvent{Kind: schema.EventBytesOut, Bytes: cmd.SendData})
		}
		cmd.reply <- err
		return false, false

	case CmdSetModemLine:
		cmd.reply <- d.tr.SetModemLine(cmd.ModemLine, cmd.LineState)
		return false, false

	case CmdSendBreak:
		cmd.reply <- d.tr.SendBreak(ctx, cmd.BreakDuration)
		return false, false

	case CmdAddTrigger:
		cmd.reply <- d.engine.Add(cmd.Trigger)
		return false, false

	case CmdRemoveTrigger:
		d.engine.Remove(cmd.TriggerID)
		cmd.reply <- nil
		return false, false

	case CmdDisconnect:
		d.setState(schema.SessionDisconnecting, "")
		dctx, cancel := context.WithTimeout(ctx, d.cfg.DisconnectTimeout)
		defer cancel()
		err := d.tr.Disconnect(dctx)
		d.setState(schema.SessionDisconnected, "")
		cmd.reply <- err
		return true, false

	case CmdReconnect:
		err := d.reconnectNow(ctx)
		cmd.reply <- err
		return false, err == nil

	case CmdAttachTerminal:
		d.term = cmd.Terminal
		cmd.reply <- nil
		return false, false

	case CmdSetDecoder:
		d.dec = newDecoder(cmd.Decoder)
		cmd.reply <- nil
		return false, false

	default:
		cmd.reply <- fmt.Errorf("unknown command %q", cmd.Kind)
		return false, false
	}
}

func (d *Dispatcher) reconnectNow(ctx context.Context) error {
	d.tr.Disconnect(ctx)
	cctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := d.tr.Connect(cctx); err != nil {
		d.setState(schema.SessionFailed, err.Error())
		return err
	}
	d.lastByteAt = time.Now()
	d.setState(schema.SessionConnected, "")
	d.bus.Publish(schema.SessionEvent{Kind: schema.EventConnected})
	return nil
}

// setState transitions the session state and publishes StateChanged before
// any state-dependent events from the new state, matching the ordering the
// dispatcher must guarantee to subscribers.
func (d *Dispatcher) setState(to schema.SessionState, reason string) {
	from := d.state
	if from == to {
		return
	}
	d.state = to
	d.bus.Publish(schema.SessionEvent{Kind: schema.EventStateChanged, From: from, To: to, Reason: reason})
}
