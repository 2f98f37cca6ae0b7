package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/termbridge/schema"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 99
sessions:
  - name: demo
    transport:
      kind: tcp
      tcp:
        host: 127.0.0.1
        port: 502
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsSessionMissingName(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
sessions:
  - transport:
      kind: tcp
      tcp:
        host: 127.0.0.1
        port: 502
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("expected name error, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected default config_version, got %d", cfg.ConfigVersion)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func TestToSessionConfigTCP(t *testing.T) {
	sc := SessionConfig{
		Name: "demo",
		Transport: TransportConfig{
			Kind: "tcp",
			TCP:  TCPConfig{Host: "10.0.0.1", Port: 502, ConnectTimeoutMS: 5000},
		},
		Triggers: []TriggerConfig{
			{
				ID:      "t1",
				Enabled: true,
				Condition: ConditionConfig{
					Kind:  "exact",
					Bytes: "de:ad:be:ef",
				},
				Action: ActionConfig{Kind: "send_text", Text: "ack"},
			},
		},
	}
	transport, cfg, err := ToSessionConfig(sc)
	if err != nil {
		t.Fatalf("ToSessionConfig: %v", err)
	}
	if transport.Kind != schema.TransportTCP || transport.TCP.Host != "10.0.0.1" {
		t.Fatalf("unexpected transport: %+v", transport)
	}
	if len(cfg.Triggers) != 1 || cfg.Triggers[0].ID != "t1" {
		t.Fatalf("unexpected triggers: %+v", cfg.Triggers)
	}
	if string(cfg.Triggers[0].Condition.Bytes) != "\xde\xad\xbe\xef" {
		t.Fatalf("expected hex-decoded condition bytes, got %x", cfg.Triggers[0].Condition.Bytes)
	}
}

func TestToSessionConfigRejectsUnknownTransport(t *testing.T) {
	_, _, err := ToSessionConfig(SessionConfig{Name: "x", Transport: TransportConfig{Kind: "carrier-pigeon"}})
	if err == nil {
		t.Fatalf("expected error for unsupported transport kind")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
