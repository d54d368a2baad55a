package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

func TestDefaultConfig_Valid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	delay, err := config.GetFlushDelay()
	if err != nil || delay != 400*time.Millisecond {
		t.Errorf("Expected 400ms flush delay, got %v (%v)", delay, err)
	}
	if config.GetTradePolicy() != trade.PolicyKeepBoth {
		t.Errorf("Expected keep-both policy, got %v", config.GetTradePolicy())
	}
	if config.GetDiceLink() != collection.DiceLinkNone {
		t.Errorf("Expected no dice link, got %v", config.GetDiceLink())
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	dir := t.TempDir()
	config, err := LoadFrom(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if config.Server.Port != 8787 {
		t.Errorf("Expected default port, got %d", config.Server.Port)
	}
	if config.App.DataDir != dir {
		t.Errorf("Expected data dir %q, got %q", dir, config.App.DataDir)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	config := DefaultConfig()
	config.Reference.Path = "/data/content.db"
	config.Trade.Policy = "single"
	config.Server.AllowedOrigins = []string{"http://example.test"}
	if err := config.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Reference.Path != "/data/content.db" {
		t.Errorf("Expected reference path to round trip, got %q", loaded.Reference.Path)
	}
	if loaded.GetTradePolicy() != trade.PolicySingleCopy {
		t.Errorf("Expected single-copy policy, got %v", loaded.GetTradePolicy())
	}
	if len(loaded.Server.AllowedOrigins) != 1 || loaded.Server.AllowedOrigins[0] != "http://example.test" {
		t.Errorf("Unexpected origins: %v", loaded.Server.AllowedOrigins)
	}
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if config.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", config.Server.Port)
	}
	if config.Cache.FlushDelay != "400ms" {
		t.Errorf("Expected default flush delay, got %q", config.Cache.FlushDelay)
	}
}

func TestLoadFrom_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "PREP_AREA_REFERENCE_PATH=/from/file.db\nPREP_AREA_PORT=9100\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PREP_AREA_PORT", "9200")
	t.Setenv("PREP_AREA_ALLOWED_ORIGINS", "http://a, http://b,")
	t.Setenv("PREP_AREA_DEBUG", "true")
	t.Setenv("PREP_AREA_REFERENCE_PATH", "")
	os.Unsetenv("PREP_AREA_REFERENCE_PATH")

	config := DefaultConfig()
	if err := config.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if config.Reference.Path != "/from/file.db" {
		t.Errorf("Expected reference path from .env, got %q", config.Reference.Path)
	}
	if config.Server.Port != 9200 {
		t.Errorf("Expected process env to win, got port %d", config.Server.Port)
	}
	if len(config.Server.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 origins, got %v", config.Server.AllowedOrigins)
	}
	if !config.App.DebugMode {
		t.Error("Expected debug mode from env")
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	t.Setenv("PREP_AREA_PORT", "abc")
	if err := DefaultConfig().ApplyEnv(""); err == nil {
		t.Fatal("Expected invalid port error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty user db", func(c *Config) { c.UserDB.Path = " " }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad rate", func(c *Config) { c.Server.ImportRate = 0 }},
		{"bad flush delay", func(c *Config) { c.Cache.FlushDelay = "soon" }},
		{"bad policy", func(c *Config) { c.Trade.Policy = "all" }},
		{"bad dice link", func(c *Config) { c.Trade.DiceLink = "d3" }},
		{"negative cache", func(c *Config) { c.Cache.FilterResults = -1 }},
		{"bad backup interval", func(c *Config) { c.UserDB.BackupInterval = "daily" }},
		{"negative backup interval", func(c *Config) { c.UserDB.BackupInterval = "-1h" }},
		{"negative backup keep", func(c *Config) { c.UserDB.BackupKeep = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	config := DefaultConfig()
	config.App.DataDir = "/base"
	if got := config.Resolve("user.db"); got != filepath.Join("/base", "user.db") {
		t.Errorf("Resolve relative = %q", got)
	}
	if got := config.Resolve("/abs/user.db"); got != "/abs/user.db" {
		t.Errorf("Resolve absolute = %q", got)
	}
	if got := config.Addr(); got != "127.0.0.1:8787" {
		t.Errorf("Addr = %q", got)
	}
}

func TestGetBackupInterval(t *testing.T) {
	cfg := DefaultConfig()
	if d, err := cfg.GetBackupInterval(); err != nil || d != 0 {
		t.Errorf("GetBackupInterval() = %v, %v; want disabled", d, err)
	}
	cfg.UserDB.BackupInterval = "12h"
	if d, err := cfg.GetBackupInterval(); err != nil || d != 12*time.Hour {
		t.Errorf("GetBackupInterval() = %v, %v; want 12h", d, err)
	}
}
