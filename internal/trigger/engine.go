package trigger

import (
	"bytes"
	"regexp"
	"sync"
	"time"

	"pkt.systems/termbridge/schema"
)

// Engine evaluates a session's triggers against its inbound byte stream in
// insertion order, disabling one-shot triggers before their action runs so
// a re-entrant Evaluate within the same receive chunk cannot refire them.
// It compiles Regex conditions with Go's regexp package (RE2): a
// documented subset of literal, character class, `.`, `*`, `+`, `?`, `|`,
// and grouping without backreferences.
type Engine struct {
	mu           sync.Mutex
	order        []schema.TriggerID
	triggers     map[schema.TriggerID]schema.Trigger
	compiled     map[schema.TriggerID]*regexp.Regexp
	timeoutFired map[schema.TriggerID]bool
}

// NewEngine compiles and returns an Engine seeded with triggers, in the
// order given.
func NewEngine(triggers []schema.Trigger) (*Engine, error) {
	e := &Engine{
		triggers:     make(map[schema.TriggerID]schema.Trigger, len(triggers)),
		compiled:     make(map[schema.TriggerID]*regexp.Regexp),
		timeoutFired: make(map[schema.TriggerID]bool),
	}
	for _, t := range triggers {
		if err := e.add(t); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Add registers a new trigger, compiling its condition if needed.
func (e *Engine) Add(t schema.Trigger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.add(t)
}

func (e *Engine) add(t schema.Trigger) error {
	if t.Condition.Kind == schema.ConditionRegex {
		re, err := regexp.Compile(t.Condition.Pattern)
		if err != nil {
			return newError(ErrInvalidRegex, "trigger %q: %v", t.ID, err)
		}
		e.compiled[t.ID] = re
	}
	if _, exists := e.triggers[t.ID]; !exists {
		e.order = append(e.order, t.ID)
	}
	e.triggers[t.ID] = t
	return nil
}

// Remove unregisters a trigger by ID. It is a no-op if the ID is unknown.
func (e *Engine) Remove(id schema.TriggerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.triggers[id]; !ok {
		return
	}
	delete(e.triggers, id)
	delete(e.compiled, id)
	delete(e.timeoutFired, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// RetentionLen returns the number of trailing bytes the caller should
// retain across evaluations so a pattern spanning a chunk boundary is
// still found: one less than the longest enabled non-timeout pattern.
func (e *Engine) RetentionLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	max := 0
	for _, id := range e.order {
		t := e.triggers[id]
		if !t.Enabled {
			continue
		}
		if l := conditionLen(t.Condition); l > max {
			max = l
		}
	}
	if max == 0 {
		return 0
	}
	return max - 1
}

func conditionLen(c schema.Condition) int {
	switch c.Kind {
	case schema.ConditionExact, schema.ConditionHexPattern:
		return len(c.Bytes)
	case schema.ConditionSubstring:
		return len(c.Text)
	case schema.ConditionRegex:
		return len(c.Pattern)
	default:
		return 0
	}
}

// Evaluate checks window (the retention suffix plus newly received bytes)
// against every enabled, non-Timeout trigger in insertion order and
// returns those that matched. One-shot triggers are disabled in the same
// pass, before being returned, so they cannot be evaluated again.
func (e *Engine) Evaluate(window []byte) []schema.Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []schema.Trigger
	for _, id := range e.order {
		t := e.triggers[id]
		if !t.Enabled || t.Condition.Kind == schema.ConditionTimeout {
			continue
		}
		if !matchCondition(t.Condition, e.compiled[id], window) {
			continue
		}
		fired = append(fired, t)
		if t.OneShot {
			t.Enabled = false
			e.triggers[id] = t
		}
	}
	return fired
}

func matchCondition(c schema.Condition, re *regexp.Regexp, window []byte) bool {
	switch c.Kind {
	case schema.ConditionExact:
		return bytes.Equal(window, c.Bytes)
	case schema.ConditionSubstring:
		return bytes.Contains(window, []byte(c.Text))
	case schema.ConditionHexPattern:
		return bytes.Contains(window, c.Bytes)
	case schema.ConditionRegex:
		return re != nil && re.Match(window)
	default:
		return false
	}
}

// NotifyBytesReceived resets the once-per-silence-episode timeout latch so
// Timeout conditions may fire again after the next quiet period.
func (e *Engine) NotifyBytesReceived() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.timeoutFired {
		delete(e.timeoutFired, id)
	}
}

// CheckTimeouts returns the enabled Timeout triggers whose configured
// silence duration has elapsed since lastByteAt, provided the session is
// Connected. Each timeout trigger fires at most once per silence episode;
// call NotifyBytesReceived to rearm it.
func (e *Engine) CheckTimeouts(now, lastByteAt time.Time, connected bool) []schema.Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !connected {
		return nil
	}
	var fired []schema.Trigger
	for _, id := range e.order {
		t := e.triggers[id]
		if !t.Enabled || t.Condition.Kind != schema.ConditionTimeout {
			continue
		}
		if e.timeoutFired[id] {
			continue
		}
		if now.Sub(lastByteAt) < t.Condition.After {
			continue
		}
		e.timeoutFired[id] = true
		fired = append(fired, t)
		if t.OneShot {
			t.Enabled = false
			e.triggers[id] = t
		}
	}
	return fired
}

// Snapshot returns the current trigger list in insertion order.
func (e *Engine) Snapshot() []schema.Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schema.Trigger, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.triggers[id])
	}
	return out
}
