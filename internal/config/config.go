// Package config loads the prep-area settings file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PREP_AREA_"

// Config represents the application configuration.
type Config struct {
	// Reference content database
	Reference ReferenceConfig `toml:"reference"`

	// User database and backups
	UserDB UserDBConfig `toml:"user_db"`

	// HTTP API server
	Server ServerConfig `toml:"server"`

	// Trade defaults
	Trade TradeConfig `toml:"trade"`

	// Caching and persistence timing
	Cache CacheConfig `toml:"cache"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// ReferenceConfig locates the read-only card database.
type ReferenceConfig struct {
	Path               string `toml:"path"`                // Path to the content SQLite file
	Watch              bool   `toml:"watch"`               // Reload when the file changes
	ReloadDelay        string `toml:"reload_delay"`        // Debounce for reloads (e.g., "500ms")
	VocabularySnapshot string `toml:"vocabulary_snapshot"` // JSON snapshot used when the database is unavailable
}

// UserDBConfig locates the writable user database.
type UserDBConfig struct {
	Path           string `toml:"path"`            // Path to the user SQLite file
	BackupDir      string `toml:"backup_dir"`      // Directory for backups
	BackupInterval string `toml:"backup_interval"` // Automatic backup interval (e.g., "24h"); empty disables
	BackupKeep     int    `toml:"backup_keep"`     // Automatic backups to retain; 0 keeps all
}

// ServerConfig contains API server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	ImportRate     float64  `toml:"import_rate"`  // Import requests per second
	ImportBurst    int      `toml:"import_burst"` // Burst size for imports
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
}

// TradeConfig contains trade and collection editing defaults.
type TradeConfig struct {
	Policy   string `toml:"policy"`    // "both" or "single"
	DiceLink string `toml:"dice_link"` // "none", "d1" or "d2"
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	FilterResults int    `toml:"filter_results"` // Cached filter results
	FlushDelay    string `toml:"flush_delay"`    // Ownership persistence debounce (e.g., "400ms")
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool   `toml:"debug_mode"` // Enable debug logging
	DataDir   string `toml:"data_dir"`   // Base directory for relative paths
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Reference: ReferenceConfig{
			Path:        "content.db",
			Watch:       true,
			ReloadDelay: "500ms",
		},
		UserDB: UserDBConfig{
			Path:       "user.db",
			BackupDir:  "backups",
			BackupKeep: 10,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8787,
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			ImportRate:     1,
			ImportBurst:    5,
			MaxUploadBytes: 10 << 20,
		},
		Trade: TradeConfig{
			Policy:   "both",
			DiceLink: "none",
		},
		Cache: CacheConfig{
			FilterResults: 64,
			FlushDelay:    "400ms",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".prep-area")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return configDir, nil
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default path.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration at path. Returns defaults if the file
// doesn't exist. Missing keys keep their default values.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()
	if config.App.DataDir == "" {
		config.App.DataDir = filepath.Dir(path)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv loads an optional .env file from envFile (skipped when empty or
// missing) and applies PREP_AREA_* variables. Variables already set in the
// process environment take precedence over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("REFERENCE_PATH", &c.Reference.Path)
	str("VOCABULARY_SNAPSHOT", &c.Reference.VocabularySnapshot)
	str("USER_DB", &c.UserDB.Path)
	str("BACKUP_DIR", &c.UserDB.BackupDir)
	str("BACKUP_INTERVAL", &c.UserDB.BackupInterval)
	str("HOST", &c.Server.Host)
	str("TRADE_POLICY", &c.Trade.Policy)
	str("DICE_LINK", &c.Trade.DiceLink)
	str("DATA_DIR", &c.App.DataDir)

	if v, ok := os.LookupEnv(EnvPrefix + "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT %q: %w", EnvPrefix, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := os.LookupEnv(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEBUG %q: %w", EnvPrefix, v, err)
		}
		c.App.DebugMode = debug
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserDB.Path) == "" {
		return fmt.Errorf("user database path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ImportRate <= 0 {
		return fmt.Errorf("import rate must be positive: %v", c.Server.ImportRate)
	}
	if c.Server.ImportBurst <= 0 {
		return fmt.Errorf("import burst must be positive: %d", c.Server.ImportBurst)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive: %d", c.Server.MaxUploadBytes)
	}
	if c.Cache.FilterResults < 0 {
		return fmt.Errorf("filter cache size cannot be negative: %d", c.Cache.FilterResults)
	}
	if _, err := c.GetFlushDelay(); err != nil {
		return fmt.Errorf("invalid flush delay %q: %w", c.Cache.FlushDelay, err)
	}
	if _, err := c.GetReloadDelay(); err != nil {
		return fmt.Errorf("invalid reload delay %q: %w", c.Reference.ReloadDelay, err)
	}
	if interval, err := c.GetBackupInterval(); err != nil {
		return fmt.Errorf("invalid backup interval %q: %w", c.UserDB.BackupInterval, err)
	} else if interval < 0 {
		return fmt.Errorf("backup interval cannot be negative: %s", interval)
	}
	if c.UserDB.BackupKeep < 0 {
		return fmt.Errorf("backup keep count cannot be negative: %d", c.UserDB.BackupKeep)
	}
	if _, err := trade.ParsePolicy(c.Trade.Policy); err != nil {
		return err
	}
	if _, err := collection.ParseDiceLink(c.Trade.DiceLink); err != nil {
		return err
	}
	return nil
}

// GetFlushDelay returns the ownership flush debounce as a duration.
func (c *Config) GetFlushDelay() (time.Duration, error) {
	return time.ParseDuration(c.Cache.FlushDelay)
}

// GetReloadDelay returns the reference reload debounce as a duration.
func (c *Config) GetReloadDelay() (time.Duration, error) {
	return time.ParseDuration(c.Reference.ReloadDelay)
}

// GetBackupInterval returns the automatic backup interval, 0 when disabled.
func (c *Config) GetBackupInterval() (time.Duration, error) {
	if strings.TrimSpace(c.UserDB.BackupInterval) == "" {
		return 0, nil
	}
	return time.ParseDuration(c.UserDB.BackupInterval)
}

// GetTradePolicy returns the default trade policy.
func (c *Config) GetTradePolicy() trade.Policy {
	p, _ := trade.ParsePolicy(c.Trade.Policy)
	return p
}

// GetDiceLink returns the default dice link mode for card edits.
func (c *Config) GetDiceLink() collection.DiceLink {
	link, _ := collection.ParseDiceLink(c.Trade.DiceLink)
	return link
}

// Resolve returns path joined to the data directory when it is relative.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.App.DataDir == "" {
		return path
	}
	return filepath.Join(c.App.DataDir, path)
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
