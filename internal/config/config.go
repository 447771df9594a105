package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrEmptyPath = errors.New("config path is empty")

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "UTC"
	defaultRefresh    = "*/10 * * * *"
	defaultLookAhead  = "2h"
	defaultLookBeyond = "1h"
	defaultDataDir    = "./var"
	defaultCacheTTL   = "5m"
	defaultHorizon    = 14
	defaultBackfill   = 1
)

// ICSConfig describes a single ICS schedule feed.
type ICSConfig struct {
	URL string `yaml:"url" json:"url"`
	// ID is stored as the item's source and used in logs.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// EventmobiConfig points at the Eventmobi REST API. An empty EventID disables it.
type EventmobiConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	EventID  string `yaml:"event_id" json:"event_id"`
	APIKey   string `yaml:"api_key" json:"-"`
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl"`
}

func (c EventmobiConfig) Enabled() bool { return c.EventID != "" }

// EventConfig holds event-wide display settings.
type EventConfig struct {
	Name string `yaml:"name" json:"name"`
	// Hashtag drives the social feed, with or without the leading '#'.
	Hashtag string `yaml:"hashtag" json:"hashtag"`
	// X session cookies (auth_token, ct0); search needs a logged-in session.
	XAuthToken string `yaml:"x_auth_token" json:"-"`
	XCSRFToken string `yaml:"x_csrf_token" json:"-"`
}

// KioskConfig controls the headless capture of the /kiosk page.
type KioskConfig struct {
	URL    string `yaml:"url" json:"url"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for day boundaries (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a five-field cron expression for the sync pipeline.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LookAhead and LookBeyond are Go duration strings for the up-next view.
	LookAhead  string `yaml:"look_ahead" json:"look_ahead"`
	LookBeyond string `yaml:"look_beyond" json:"look_beyond"`

	// HorizonDays / BackfillDays bound recurring ICS expansion around now.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// DataDir holds the SQLite snapshot, the ICS cache and kiosk captures.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Event     EventConfig      `yaml:"event" json:"event"`
	ICS       []ICSConfig      `yaml:"ics" json:"ics"`
	Eventmobi EventmobiConfig  `yaml:"eventmobi" json:"eventmobi"`
	Kiosk     KioskConfig      `yaml:"kiosk" json:"kiosk"`
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so that partially
// filled files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if _, err := time.ParseDuration(c.LookAhead); err != nil {
		c.LookAhead = defaultLookAhead
	}
	if _, err := time.ParseDuration(c.LookBeyond); err != nil {
		c.LookBeyond = defaultLookBeyond
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = defaultBackfill
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Eventmobi.BaseURL == "" {
		c.Eventmobi.BaseURL = "https://api.eventmobi.com/v2"
	}
	c.Eventmobi.BaseURL = strings.TrimRight(c.Eventmobi.BaseURL, "/")
	if _, err := time.ParseDuration(c.Eventmobi.CacheTTL); err != nil {
		c.Eventmobi.CacheTTL = defaultCacheTTL
	}
	if c.Kiosk.URL == "" {
		c.Kiosk.URL = "http://" + c.Listen + "/kiosk"
	}
	if c.Kiosk.Output == "" {
		c.Kiosk.Output = filepath.Join(c.DataDir, "kiosk.png")
	}
}

// Location resolves Timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) LookAheadDuration() time.Duration {
	return mustDuration(c.LookAhead, defaultLookAhead)
}

func (c *Config) LookBeyondDuration() time.Duration {
	return mustDuration(c.LookBeyond, defaultLookBeyond)
}

// CacheTTL is how long Eventmobi responses are reused.
func (c *Config) CacheTTL() time.Duration {
	return mustDuration(c.Eventmobi.CacheTTL, defaultCacheTTL)
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "confguide.db")
}

func (c *Config) ICSCacheDir() string {
	return filepath.Join(c.DataDir, "ics-cache")
}

// BasicAuthEnabled reports whether both basic auth credentials are set.
func (c *Config) BasicAuthEnabled() bool {
	return c.BasicAuth != nil && c.BasicAuth.Username != "" && c.BasicAuth.Password != ""
}

func mustDuration(s, def string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}

// Load loads configuration from the given YAML path. A missing file is
// created with defaults (0600) on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confguide-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
