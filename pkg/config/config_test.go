package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("GLIMPSE_ADDR", "127.0.0.1:9090")
	t.Setenv("GLIMPSE_DB_PATH", "/tmp/glimpse-db")
	t.Setenv("GLIMPSE_API_BACKEND_KEYS", "bk1, bk2")
	t.Setenv("GLIMPSE_OUTBOX_CAPACITY", "2048")
	t.Setenv("GLIMPSE_EDIT_WINDOW", "30m")

	cfg, res := ParseConfigEnvs()
	if !res.EnvUsed {
		t.Fatal("env not detected")
	}
	if cfg.Server.Address != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("addr = %s:%d", cfg.Server.Address, cfg.Server.Port)
	}
	if cfg.Server.DBPath != "/tmp/glimpse-db" {
		t.Errorf("db path = %q", cfg.Server.DBPath)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Errorf("backend keys = %v", cfg.Security.APIKeys.Backend)
	}
	if _, ok := res.SigningKeys["bk1"]; !ok {
		t.Errorf("backend keys not usable as signing keys: %v", res.SigningKeys)
	}
	if cfg.Outbox.QueueCapacity != 2048 {
		t.Errorf("outbox capacity = %d", cfg.Outbox.QueueCapacity)
	}
	if cfg.Limits.EditWindow.Duration() != 30*time.Minute {
		t.Errorf("edit window = %v", cfg.Limits.EditWindow.Duration())
	}
}

func TestYAMLScalarTypes(t *testing.T) {
	raw := []byte(`
server:
  address: 0.0.0.0
  port: 8080
limits:
  max_body_bytes: 1MB
  edit_window: 15m
retention:
  enabled: true
  period: 720h
`)
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Limits.MaxBodyBytes.Int64() != 1000*1000 {
		t.Errorf("max_body_bytes = %d", cfg.Limits.MaxBodyBytes.Int64())
	}
	if cfg.Limits.EditWindow.Duration() != 15*time.Minute {
		t.Errorf("edit_window = %v", cfg.Limits.EditWindow.Duration())
	}
	if cfg.Retention.Period.Duration() != 720*time.Hour {
		t.Errorf("retention period = %v", cfg.Retention.Period.Duration())
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Addr())
	}

	// bare numbers are seconds
	var cfg2 Config
	if err := yaml.Unmarshal([]byte("limits:\n  edit_window: 900\n"), &cfg2); err != nil {
		t.Fatalf("numeric duration: %v", err)
	}
	if cfg2.Limits.EditWindow.Duration() != 900*time.Second {
		t.Errorf("numeric edit_window = %v", cfg2.Limits.EditWindow.Duration())
	}
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n  db_path: /from/file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	fileCfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// explicit --config wins over everything
	eff, err := LoadEffectiveConfig(Flags{Config: path, Set: map[string]bool{"config": true}}, fileCfg, true, &Config{}, EnvResult{})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if eff.Source != "config" || eff.DBPath != "/from/file" {
		t.Fatalf("eff = %+v", eff)
	}

	// explicit --config pointing nowhere is an error, not a fallback
	if _, err := LoadEffectiveConfig(Flags{Config: filepath.Join(dir, "missing.yaml"), Set: map[string]bool{"config": true}}, &Config{}, false, &Config{}, EnvResult{}); err == nil {
		t.Fatal("missing explicit config accepted")
	}

	// flags win when set
	eff, err = LoadEffectiveConfig(Flags{Addr: ":6060", DB: "/from/flag", Set: map[string]bool{"addr": true, "db": true}}, fileCfg, true, &Config{}, EnvResult{})
	if err != nil || eff.Source != "flags" || eff.DBPath != "/from/flag" || eff.Addr != ":6060" {
		t.Fatalf("flags eff = %+v (%v)", eff, err)
	}

	// otherwise an existing file beats env
	envCfg := &Config{}
	envCfg.Server.DBPath = "/from/env"
	eff, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
	if err != nil || eff.Source != "config" {
		t.Fatalf("file-vs-env eff = %+v (%v)", eff, err)
	}

	eff, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	if err != nil || eff.Source != "env" || eff.DBPath != "/from/env" {
		t.Fatalf("env eff = %+v (%v)", eff, err)
	}
}
