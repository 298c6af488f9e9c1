package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"confsched/internal/schedule"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "America/Los_Angeles"
	defaultLogLevel     = "info"
	defaultCacheDir     = "./var/agenda-cache"
	defaultUserdataPath = "./var/userdata.db"
	defaultRefreshCron  = "*/15 * * * *"
)

// AgendaSource describes a single agenda feed.
type AgendaSource struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is an http(s) ICS endpoint or a path to a local .ics file.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ScheduleConfig controls how "My Schedule" days are assembled.
type ScheduleConfig struct {
	// ConflictScope is one of "all", "scheduled-filter", "scheduled-aware".
	ConflictScope string `yaml:"conflict_scope" json:"conflict_scope"`

	// AllowedOverlap is tolerated between consecutive items before they
	// count as conflicting, e.g. "5m".
	AllowedOverlap time.Duration `yaml:"allowed_overlap" json:"allowed_overlap"`

	CarveFreeBlocks bool          `yaml:"carve_free_blocks" json:"carve_free_blocks"`
	MinFreeBlock    time.Duration `yaml:"min_free_block" json:"min_free_block"`

	SessionsOnly    bool `yaml:"sessions_only" json:"sessions_only"`
	LivestreamOnly  bool `yaml:"livestream_only" json:"livestream_only"`
	AttendeeAtVenue bool `yaml:"attendee_at_venue" json:"attendee_at_venue"`
}

// ReservationsConfig toggles the reservation endpoints.
type ReservationsConfig struct {
	// Enabled opens reservations. When false every session is shown as
	// reservation-disabled unless the attendee already holds a status.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone of the conference venue.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Days lists the conference days as YYYY-MM-DD.
	Days []string `yaml:"days" json:"days"`

	// Agenda is the list of agenda feeds.
	Agenda []AgendaSource `yaml:"agenda" json:"agenda"`

	CacheDir     string `yaml:"cache_dir" json:"cache_dir"`
	UserdataPath string `yaml:"userdata_path" json:"userdata_path"`

	// RefreshCron is a standard 5-field cron spec (e.g. "*/15 * * * *")
	// used for periodic feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Schedule     ScheduleConfig     `yaml:"schedule" json:"schedule"`
	Reservations ReservationsConfig `yaml:"reservations" json:"reservations"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health. It also identifies the attendee for reservations.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		LogLevel:     defaultLogLevel,
		Days:         []string{},
		Agenda:       []AgendaSource{},
		CacheDir:     defaultCacheDir,
		UserdataPath: defaultUserdataPath,
		RefreshCron:  defaultRefreshCron,
		Schedule: ScheduleConfig{
			ConflictScope:   string(schedule.DefaultScope),
			CarveFreeBlocks: true,
			MinFreeBlock:    schedule.DefaultMinFreeBlock,
			AttendeeAtVenue: true,
		},
		Reservations: ReservationsConfig{Enabled: true},
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Booleans are left as
// written.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.UserdataPath == "" {
		c.UserdataPath = defaultUserdataPath
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Schedule.ConflictScope == "" {
		c.Schedule.ConflictScope = string(schedule.DefaultScope)
	}
	if c.Schedule.AllowedOverlap < 0 {
		c.Schedule.AllowedOverlap = 0
	}
	if c.Schedule.MinFreeBlock <= 0 {
		c.Schedule.MinFreeBlock = schedule.DefaultMinFreeBlock
	}
	if c.Days == nil {
		c.Days = []string{}
	}
	if c.Agenda == nil {
		c.Agenda = []AgendaSource{}
	}
	for i := range c.Agenda {
		if c.Agenda[i].ID == "" {
			c.Agenda[i].ID = fmt.Sprintf("agenda-%d", i+1)
		}
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, err := c.Scope(); err != nil {
		return fmt.Errorf("schedule.conflict_scope: %w", err)
	}
	for _, d := range c.Days {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("days: %q is not YYYY-MM-DD", d)
		}
	}
	seen := make(map[string]struct{}, len(c.Agenda))
	for _, a := range c.Agenda {
		if a.URL == "" {
			return fmt.Errorf("agenda %s: url is empty", a.ID)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("agenda %s: duplicate id", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		return errors.New("basic_auth: username is empty")
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Scope parses the configured conflict scope.
func (c *Config) Scope() (schedule.Scope, error) {
	return schedule.ParseScope(c.Schedule.ConflictScope)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
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
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
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

	tmp, err := os.CreateTemp(dir, ".confsched-config-*.tmp")
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

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
