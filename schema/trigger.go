package schema

import "time"

// TriggerID identifies a trigger within a session's trigger list.
type TriggerID string

// ConditionKind discriminates Condition's variant.
type ConditionKind string

const (
	ConditionExact      ConditionKind = "exact"
	ConditionSubstring  ConditionKind = "substring"
	ConditionRegex      ConditionKind = "regex"
	ConditionHexPattern ConditionKind = "hex_pattern"
	ConditionTimeout    ConditionKind = "timeout"
)

// Condition is a tagged variant describing when a trigger fires.
type Condition struct {
	Kind    ConditionKind
	Bytes   []byte        // Exact, HexPattern
	Text    string        // Substring
	Pattern string        // Regex
	After   time.Duration // Timeout: no bytes received for this long
}

// ActionKind discriminates Action's variant.
type ActionKind string

const (
	ActionSend     ActionKind = "send"
	ActionSendText ActionKind = "send_text"
	ActionLog      ActionKind = "log"
	ActionNotify   ActionKind = "notify"
	ActionChain    ActionKind = "chain"
)

// Action is a tagged variant describing what a trigger does when it fires.
type Action struct {
	Kind    ActionKind
	Bytes   []byte   // Send
	Text    string   // SendText, Log, Notify
	Chain   []Action // Chain
}

// Trigger belongs to exactly one session; it is never shared.
type Trigger struct {
	ID       TriggerID
	Enabled  bool
	OneShot  bool
	Condition Condition
	Action    Action
}
