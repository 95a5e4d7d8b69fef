// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/parley-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend endpoints
	Server ServerConfig `toml:"server" json:"server"`

	// Preference persistence
	Storage StorageConfig `toml:"storage" json:"storage"`

	UI            UIConfig            `toml:"ui" json:"ui"`
	Logging       LoggingConfig       `toml:"logging" json:"logging"`
	Notifications NotificationsConfig `toml:"notifications" json:"notifications"`
	Voice         VoiceConfig         `toml:"voice" json:"voice"`
}

// ServerConfig describes where the chat backend lives.
type ServerConfig struct {
	// APIURL is the base URL of the REST API (e.g. http://localhost:5001/api)
	APIURL string `toml:"api_url" json:"api_url"`
	// SocketURL is the websocket endpoint. Empty derives it from APIURL.
	SocketURL string `toml:"socket_url" json:"socket_url"`
	// TimeoutSecs bounds every HTTP request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// StorageConfig selects the preference backend.
type StorageConfig struct {
	// Backend is one of "file", "sqlite", "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path overrides the backend's default location
	Path string `toml:"path" json:"path"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme"` // "auto", "dark", "light"
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps"`
}

// LoggingConfig controls the zerolog sink.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	// File defaults to ~/.parley/parley.log
	File string `toml:"file" json:"file"`
}

// NotificationsConfig picks how notification sounds are delivered.
type NotificationsConfig struct {
	// Player is one of "beep", "notify", "none"
	Player string `toml:"player" json:"player"`
}

// VoiceConfig configures the external audio capture command.
// Args may contain {output} and {seconds} placeholders.
type VoiceConfig struct {
	Command string   `toml:"command" json:"command"`
	Args    []string `toml:"args" json:"args"`
	MaxSecs int      `toml:"max_secs" json:"max_secs"`
}

// Timeout returns the configured HTTP timeout.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// ResolvedSocketURL returns SocketURL, or the websocket URL implied by
// APIURL when none is configured: same host, ws(s) scheme, path /socket.
func (s ServerConfig) ResolvedSocketURL() string {
	if s.SocketURL != "" {
		return s.SocketURL
	}
	u, err := url.Parse(s.APIURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/socket"
	u.RawQuery = ""
	return u.String()
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with all defaults filled in.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			APIURL:      "http://localhost:5001/api",
			TimeoutSecs: 30,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		UI: UIConfig{
			Theme:          "auto",
			ShowTimestamps: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Notifications: NotificationsConfig{
			Player: "beep",
		},
		Voice: VoiceConfig{
			Command: "arecord",
			Args:    []string{"-q", "-f", "cd", "-d", "{seconds}", "{output}"},
			MaxSecs: 60,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley data directory. PARLEY_DATA_DIR wins over
// the default ~/.parley.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PARLEY_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// loadDotEnv reads ~/.parley/.env into the process environment. Variables
// already set in the environment keep their value.
func loadDotEnv() {
	dir, err := ConfigDir()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(dir, ".env"))
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# parley configuration file\n")
	b.WriteString("# Generated by parley - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validBackends = []string{"file", "sqlite", "memory"}
	validPlayers  = []string{"beep", "notify", "none"}
	validThemes   = []string{"auto", "dark", "light"}
	validLevels   = []string{"trace", "debug", "info", "warn", "error", "disabled"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Server.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.api_url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Server.APIURL),
		})
	}
	if c.Server.SocketURL != "" {
		if u, err := url.Parse(c.Server.SocketURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "server.socket_url",
				Message: fmt.Sprintf("must be a ws(s) URL, got %q", c.Server.SocketURL),
			})
		}
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: "must be between 1 and 600",
		})
	}
	if !oneOf(c.Storage.Backend, validBackends) {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validBackends, ", ")),
		})
	}
	if !oneOf(c.UI.Theme, validThemes) {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validThemes, ", ")),
		})
	}
	if !oneOf(c.Logging.Level, validLevels) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validLevels, ", ")),
		})
	}
	if !oneOf(c.Notifications.Player, validPlayers) {
		errs = append(errs, ValidationError{
			Field:   "notifications.player",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validPlayers, ", ")),
		})
	}
	if c.Voice.MaxSecs < 1 || c.Voice.MaxSecs > 60 {
		errs = append(errs, ValidationError{
			Field:   "voice.max_secs",
			Message: "must be between 1 and 60",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.APIURL == "" {
		c.Server.APIURL = d.Server.APIURL
	}
	c.Server.APIURL = strings.TrimRight(c.Server.APIURL, "/")
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = d.Server.TimeoutSecs
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Notifications.Player == "" {
		c.Notifications.Player = d.Notifications.Player
	}
	if c.Voice.Command == "" {
		c.Voice.Command = d.Voice.Command
		c.Voice.Args = d.Voice.Args
	}
	if c.Voice.MaxSecs == 0 {
		c.Voice.MaxSecs = d.Voice.MaxSecs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - PARLEY_SERVER_URL: overrides server.api_url
//   - PARLEY_SOCKET_URL: overrides server.socket_url
//   - PARLEY_STORAGE: overrides storage.backend
//   - PARLEY_LOG_LEVEL: overrides logging.level
//   - PARLEY_TIMEOUT: overrides server.timeout_secs
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PARLEY_SERVER_URL"); v != "" {
		c.Server.APIURL = v
	}
	if v := os.Getenv("PARLEY_SOCKET_URL"); v != "" {
		c.Server.SocketURL = v
	}
	if v := os.Getenv("PARLEY_STORAGE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PARLEY_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.TimeoutSecs = n
		}
	}
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using the TOML key path
// (e.g. "server.api_url").
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Voice.Args != nil {
		clone.Voice.Args = append([]string(nil), c.Voice.Args...)
	}
	return &clone
}

// String renders the config as TOML for `parley config show`.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("<unencodable config: %v>", err)
	}
	return b.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
