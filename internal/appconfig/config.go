// Package appconfig loads the declarative YAML configuration for the
// `serve` command: which sessions to bring up at startup, their transport
// parameters, and their trigger lists. It is ambient tooling around the
// session core, not a persistence format for the schema package's types.
package appconfig

import (
	"os"
	"path/filepath"
)

// CurrentConfigVersion marks the supported config schema version.
const CurrentConfigVersion = 1

// Config is the top-level `serve` configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Logging       LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Sessions      []SessionConfig `mapstructure:"sessions" yaml:"sessions"`
}

// LoggingConfig controls the pslog sink used by the serve command.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Mode  string `mapstructure:"mode" yaml:"mode"` // "structured" or "pretty"
}

// SessionConfig declares one session to start when `serve` boots.
type SessionConfig struct {
	Name              string          `mapstructure:"name" yaml:"name"`
	Transport         TransportConfig `mapstructure:"transport" yaml:"transport"`
	Triggers          []TriggerConfig `mapstructure:"triggers" yaml:"triggers"`
	RxBufferCapacity    int             `mapstructure:"rx_buffer_capacity" yaml:"rx_buffer_capacity"`
	ConnectTimeoutMS    int             `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	DisconnectTimeoutMS int             `mapstructure:"disconnect_timeout_ms" yaml:"disconnect_timeout_ms"`
	SubscriberLagMax    int             `mapstructure:"subscriber_lag_max" yaml:"subscriber_lag_max"`
	Reconnect         ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
}

// ReconnectConfig mirrors schema.ReconnectPolicy in YAML-friendly form.
type ReconnectConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	BaseDelayMS    int  `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS     int  `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	MaxAttempts    int  `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// TransportConfig declares a session's transport. Exactly one of the
// nested *Config fields is read, selected by Kind.
type TransportConfig struct {
	Kind   string       `mapstructure:"kind" yaml:"kind"` // serial|tcp|telnet|ssh|ble
	Serial SerialConfig `mapstructure:"serial" yaml:"serial"`
	TCP    TCPConfig    `mapstructure:"tcp" yaml:"tcp"`
	Telnet TelnetConfig `mapstructure:"telnet" yaml:"telnet"`
	SSH    SSHConfig    `mapstructure:"ssh" yaml:"ssh"`
	BLE    BLEConfig    `mapstructure:"ble" yaml:"ble"`
}

// SerialConfig configures a serial transport.
type SerialConfig struct {
	Port          string  `mapstructure:"port" yaml:"port"`
	Baud          int     `mapstructure:"baud" yaml:"baud"`
	DataBits      int     `mapstructure:"data_bits" yaml:"data_bits"`
	StopBits      float64 `mapstructure:"stop_bits" yaml:"stop_bits"`
	Parity        string  `mapstructure:"parity" yaml:"parity"`
	Flow          string  `mapstructure:"flow" yaml:"flow"`
	AutoReconnect bool    `mapstructure:"auto_reconnect" yaml:"auto_reconnect"`
}

// TCPConfig configures a raw TCP transport.
type TCPConfig struct {
	Host                string `mapstructure:"host" yaml:"host"`
	Port                int    `mapstructure:"port" yaml:"port"`
	ConnectTimeoutMS    int    `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	KeepaliveIntervalMS int    `mapstructure:"keepalive_interval_ms" yaml:"keepalive_interval_ms"`
	NoDelay             bool   `mapstructure:"nodelay" yaml:"nodelay"`
}

// TelnetConfig configures a telnet transport.
type TelnetConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	TerminalType string `mapstructure:"terminal_type" yaml:"terminal_type"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
	WantEcho     bool   `mapstructure:"want_echo" yaml:"want_echo"`
	WantBinary   bool   `mapstructure:"want_binary" yaml:"want_binary"`
}

// SSHConfig configures the opaque-byte-channel SSH transport.
type SSHConfig struct {
	Host              string `mapstructure:"host" yaml:"host"`
	Port              int    `mapstructure:"port" yaml:"port"`
	User              string `mapstructure:"user" yaml:"user"`
	PrivateKeyPath    string `mapstructure:"private_key_path" yaml:"private_key_path"`
	Password          string `mapstructure:"password" yaml:"password"`
	ConnectTimeoutMS  int    `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	Command           string `mapstructure:"command" yaml:"command"`
}

// BLEConfig configures the BLE GATT transport.
type BLEConfig struct {
	DeviceID   string `mapstructure:"device_id" yaml:"device_id"`
	Service    string `mapstructure:"service" yaml:"service"`
	TxCharUUID string `mapstructure:"tx_char_uuid" yaml:"tx_char_uuid"`
	RxCharUUID string `mapstructure:"rx_char_uuid" yaml:"rx_char_uuid"`
}

// TriggerConfig declares one trigger. Byte fields are hex-encoded strings
// in YAML (e.g. "de:ad:be:ef" or "deadbeef").
type TriggerConfig struct {
	ID        string          `mapstructure:"id" yaml:"id"`
	Enabled   bool            `mapstructure:"enabled" yaml:"enabled"`
	OneShot   bool            `mapstructure:"one_shot" yaml:"one_shot"`
	Condition ConditionConfig `mapstructure:"condition" yaml:"condition"`
	Action    ActionConfig    `mapstructure:"action" yaml:"action"`
}

// ConditionConfig declares a trigger's match condition.
type ConditionConfig struct {
	Kind      string `mapstructure:"kind" yaml:"kind"` // exact|substring|regex|hex_pattern|timeout
	Bytes     string `mapstructure:"bytes" yaml:"bytes"`
	Text      string `mapstructure:"text" yaml:"text"`
	Pattern   string `mapstructure:"pattern" yaml:"pattern"`
	AfterMS   int    `mapstructure:"after_ms" yaml:"after_ms"`
}

// ActionConfig declares a trigger's response action.
type ActionConfig struct {
	Kind  string          `mapstructure:"kind" yaml:"kind"` // send|send_text|log|notify|chain
	Bytes string          `mapstructure:"bytes" yaml:"bytes"`
	Text  string          `mapstructure:"text" yaml:"text"`
	Chain []ActionConfig  `mapstructure:"chain" yaml:"chain"`
}

// DefaultConfig returns a config with sensible defaults and no sessions;
// `serve` requires at least one session to be declared in the file.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Logging: LoggingConfig{
			Level: "info",
			Mode:  "structured",
		},
	}
}

// DefaultConfigPath returns the standard config path under the user's home
// directory.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".termbridge", "config.yaml"), nil
}
