package appconfig

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/termbridge/schema"
)

// Load reads the serve configuration from path. If path is empty,
// DefaultConfigPath is used. A missing file is not an error: the returned
// config carries no sessions, and it is the caller's responsibility to
// decide whether that's acceptable.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.mode", cfg.Logging.Mode)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	for i := range cfg.Sessions {
		if strings.TrimSpace(cfg.Sessions[i].Name) == "" {
			return Config{}, fmt.Errorf("session[%d]: name is required", i)
		}
		cfg.Sessions[i].Transport.SSH.PrivateKeyPath = expandEnv(cfg.Sessions[i].Transport.SSH.PrivateKeyPath)
		cfg.Sessions[i].Transport.Serial.Port = expandEnv(cfg.Sessions[i].Transport.Serial.Port)
	}
	return cfg, nil
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// WriteDefault writes a starter config to path, refusing to overwrite an
// existing file unless overwrite is true.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// ToSessionConfig translates one declarative SessionConfig into the
// in-memory schema.SessionConfig + schema.TransportKind the session
// manager consumes. Byte-valued trigger fields are hex-decoded here so the
// runtime types never carry a string encoding.
func ToSessionConfig(sc SessionConfig) (schema.TransportKind, schema.SessionConfig, error) {
	transport, err := toTransportKind(sc.Transport)
	if err != nil {
		return schema.TransportKind{}, schema.SessionConfig{}, err
	}
	triggers := make([]schema.Trigger, 0, len(sc.Triggers))
	for _, tc := range sc.Triggers {
		trig, err := toTrigger(tc)
		if err != nil {
			return schema.TransportKind{}, schema.SessionConfig{}, fmt.Errorf("trigger %q: %w", tc.ID, err)
		}
		triggers = append(triggers, trig)
	}
	raw := schema.SessionConfig{
		Transport:         transport,
		Triggers:          triggers,
		RxBufferCapacity:  sc.RxBufferCapacity,
		ConnectTimeout:    time.Duration(sc.ConnectTimeoutMS) * time.Millisecond,
		DisconnectTimeout: time.Duration(sc.DisconnectTimeoutMS) * time.Millisecond,
		SubscriberLagMax:  sc.SubscriberLagMax,
		Reconnect: schema.ReconnectPolicy{
			Enabled:     sc.Reconnect.Enabled,
			BaseDelay:   time.Duration(sc.Reconnect.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(sc.Reconnect.MaxDelayMS) * time.Millisecond,
			MaxAttempts: sc.Reconnect.MaxAttempts,
		},
	}
	normalized, err := schema.NormalizeSessionConfig(raw)
	if err != nil {
		return schema.TransportKind{}, schema.SessionConfig{}, err
	}
	return transport, normalized, nil
}

func toTransportKind(tc TransportConfig) (schema.TransportKind, error) {
	switch strings.ToLower(tc.Kind) {
	case "serial":
		return schema.TransportKind{
			Kind: schema.TransportSerial,
			Serial: schema.SerialParams{
				Port:          tc.Serial.Port,
				Baud:          tc.Serial.Baud,
				DataBits:      tc.Serial.DataBits,
				StopBits:      tc.Serial.StopBits,
				Parity:        schema.Parity(tc.Serial.Parity),
				Flow:          schema.FlowControl(tc.Serial.Flow),
				AutoReconnect: tc.Serial.AutoReconnect,
			},
		}, nil
	case "tcp":
		return schema.TransportKind{
			Kind: schema.TransportTCP,
			TCP: schema.TCPParams{
				Host:              tc.TCP.Host,
				Port:              tc.TCP.Port,
				ConnectTimeout:    time.Duration(tc.TCP.ConnectTimeoutMS) * time.Millisecond,
				KeepaliveInterval: time.Duration(tc.TCP.KeepaliveIntervalMS) * time.Millisecond,
				NoDelay:           tc.TCP.NoDelay,
			},
		}, nil
	case "telnet":
		return schema.TransportKind{
			Kind: schema.TransportTelnet,
			Telnet: schema.TelnetParams{
				Host:         tc.Telnet.Host,
				Port:         tc.Telnet.Port,
				TerminalType: tc.Telnet.TerminalType,
				WindowWidth:  tc.Telnet.WindowWidth,
				WindowHeight: tc.Telnet.WindowHeight,
				WantEcho:     tc.Telnet.WantEcho,
				WantBinary:   tc.Telnet.WantBinary,
			},
		}, nil
	case "ssh":
		var key []byte
		if tc.SSH.PrivateKeyPath != "" {
			data, err := os.ReadFile(tc.SSH.PrivateKeyPath)
			if err != nil {
				return schema.TransportKind{}, fmt.Errorf("read ssh private key: %w", err)
			}
			key = data
		}
		return schema.TransportKind{
			Kind: schema.TransportSSH,
			SSH: schema.SSHParams{
				Host:           tc.SSH.Host,
				Port:           tc.SSH.Port,
				User:           tc.SSH.User,
				PrivateKeyPEM:  key,
				Password:       tc.SSH.Password,
				ConnectTimeout: time.Duration(tc.SSH.ConnectTimeoutMS) * time.Millisecond,
				Command:        tc.SSH.Command,
			},
		}, nil
	case "ble":
		return schema.TransportKind{
			Kind: schema.TransportBLE,
			BLE: schema.BLEParams{
				DeviceID:   tc.BLE.DeviceID,
				Service:    tc.BLE.Service,
				TxCharUUID: tc.BLE.TxCharUUID,
				RxCharUUID: tc.BLE.RxCharUUID,
			},
		}, nil
	default:
		return schema.TransportKind{}, fmt.Errorf("unsupported transport kind %q", tc.Kind)
	}
}

func toTrigger(tc TriggerConfig) (schema.Trigger, error) {
	cond, err := toCondition(tc.Condition)
	if err != nil {
		return schema.Trigger{}, err
	}
	action, err := toAction(tc.Action)
	if err != nil {
		return schema.Trigger{}, err
	}
	return schema.Trigger{
		ID:        schema.TriggerID(tc.ID),
		Enabled:   tc.Enabled,
		OneShot:   tc.OneShot,
		Condition: cond,
		Action:    action,
	}, nil
}

func toCondition(cc ConditionConfig) (schema.Condition, error) {
	kind := schema.ConditionKind(strings.ToLower(cc.Kind))
	cond := schema.Condition{
		Kind:  kind,
		Text:  cc.Text,
		After: time.Duration(cc.AfterMS) * time.Millisecond,
	}
	switch kind {
	case schema.ConditionExact, schema.ConditionHexPattern:
		b, err := decodeHex(cc.Bytes)
		if err != nil {
			return schema.Condition{}, fmt.Errorf("condition bytes: %w", err)
		}
		cond.Bytes = b
	case schema.ConditionRegex:
		cond.Pattern = cc.Pattern
	}
	return cond, nil
}

func toAction(ac ActionConfig) (schema.Action, error) {
	kind := schema.ActionKind(strings.ToLower(ac.Kind))
	action := schema.Action{Kind: kind, Text: ac.Text}
	if kind == schema.ActionSend {
		b, err := decodeHex(ac.Bytes)
		if err != nil {
			return schema.Action{}, fmt.Errorf("action bytes: %w", err)
		}
		action.Bytes = b
	}
	if kind == schema.ActionChain {
		chain := make([]schema.Action, 0, len(ac.Chain))
		for _, sub := range ac.Chain {
			subAction, err := toAction(sub)
			if err != nil {
				return schema.Action{}, err
			}
			chain = append(chain, subAction)
		}
		action.Chain = chain
	}
	return action, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, ":", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
