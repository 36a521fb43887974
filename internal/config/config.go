// Package config loads gamedock settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the settings file looked up in the config directory.
const FileName = "gamedock.toml"

const envPrefix = "GAMEDOCK_"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// LegendaryBin is the backend CLI executable.
	LegendaryBin string `toml:"legendary_bin"`
	// ConfigDir holds gamedock.toml and per-source settings files.
	ConfigDir string `toml:"config_dir"`
	// GameDir is the base directory new installs go to. Empty lets the backend decide.
	GameDir string `toml:"game_dir"`
	// Offline starts the session without network access.
	Offline bool `toml:"offline"`

	ListenAddr  string `toml:"listen_addr"`
	APIToken    string `toml:"api_token"`
	DatabaseURL string `toml:"database_url"`

	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`

	SDLBaseURL string `toml:"sdl_base_url"`
	// MetadataRPS limits size lookups against the backend.
	MetadataRPS float64 `toml:"metadata_rps"`
	// ProcessTimeoutMS bounds one-shot backend commands.
	ProcessTimeoutMS int `toml:"process_timeout_ms"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LegendaryBin:     "legendary",
		ConfigDir:        defaultConfigDir(),
		ListenAddr:       "127.0.0.1:9090",
		LogLevel:         "info",
		SDLBaseURL:       "https://legendary.gl/v1/sdl",
		MetadataRPS:      2,
		ProcessTimeoutMS: 60000,
	}
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gamedock")
	}
	return ".gamedock"
}

// Load reads <dir>/gamedock.toml on top of the defaults and applies
// GAMEDOCK_* environment overrides. A missing file is not an error. An empty
// dir uses GAMEDOCK_CONFIG_DIR or the platform default.
func Load(dir string) (*Config, error) {
	c := Default()
	if dir == "" {
		dir = os.Getenv(envPrefix + "CONFIG_DIR")
	}
	if dir != "" {
		c.ConfigDir = dir
	}

	b, err := os.ReadFile(filepath.Join(c.ConfigDir, FileName))
	switch {
	case err == nil:
		if err := toml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
		if dir != "" {
			c.ConfigDir = dir
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"LEGENDARY_BIN": &c.LegendaryBin,
		"GAME_DIR":      &c.GameDir,
		"LISTEN_ADDR":   &c.ListenAddr,
		"API_TOKEN":     &c.APIToken,
		"DATABASE_URL":  &c.DatabaseURL,
		"LOG_FILE":      &c.LogFile,
		"LOG_LEVEL":     &c.LogLevel,
		"SDL_BASE_URL":  &c.SDLBaseURL,
	}
	for k, p := range str {
		if v, ok := os.LookupEnv(envPrefix + k); ok {
			*p = v
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "OFFLINE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sOFFLINE: %v", ErrInvalid, envPrefix, err)
		}
		c.Offline = b
	}
	if v, ok := os.LookupEnv(envPrefix + "METADATA_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sMETADATA_RPS: %v", ErrInvalid, envPrefix, err)
		}
		c.MetadataRPS = f
	}
	if v, ok := os.LookupEnv(envPrefix + "PROCESS_TIMEOUT_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sPROCESS_TIMEOUT_MS: %v", ErrInvalid, envPrefix, err)
		}
		c.ProcessTimeoutMS = n
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.MetadataRPS < 0 {
		return fmt.Errorf("%w: metadata_rps must not be negative", ErrInvalid)
	}
	if c.ProcessTimeoutMS < 0 {
		return fmt.Errorf("%w: process_timeout_ms must not be negative", ErrInvalid)
	}
	return nil
}

// ProcessTimeout is ProcessTimeoutMS as a duration.
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutMS) * time.Millisecond
}

// SettingsPath is the per-source settings file under the config directory.
func (c *Config) SettingsPath(source string) string {
	return filepath.Join(c.ConfigDir, source+".json")
}

// SettingsMarker reports whether a source's settings file exists. The file
// is never parsed.
func (c *Config) SettingsMarker(source string) bool {
	_, err := os.Stat(c.SettingsPath(source))
	return err == nil
}

// Save writes the configuration to <config_dir>/gamedock.toml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.ConfigDir, 0o700); err != nil {
		return err
	}
	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.ConfigDir, FileName), b, 0o600)
}
