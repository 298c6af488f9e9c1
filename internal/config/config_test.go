package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsched/internal/schedule"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: UTC
days: ["2014-06-25", "2014-06-26"]
agenda:
  - url: ./agenda.ics
  - id: remote
    url: https://example.com/io.ics
schedule:
  conflict_scope: all
  allowed_overlap: 5m
  carve_free_blocks: true
reservations:
  enabled: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "agenda-1", cfg.Agenda[0].ID)
	assert.Equal(t, "remote", cfg.Agenda[1].ID)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.AllowedOverlap)
	assert.Equal(t, schedule.DefaultMinFreeBlock, cfg.Schedule.MinFreeBlock)
	assert.False(t, cfg.Schedule.AttendeeAtVenue)
	assert.False(t, cfg.Reservations.Enabled)

	scope, err := cfg.Scope()
	require.NoError(t, err)
	assert.Equal(t, schedule.ScopeAll, scope)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("days: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"scope", func(c *Config) { c.Schedule.ConflictScope = "some" }},
		{"day", func(c *Config) { c.Days = []string{"06/25/2014"} }},
		{"empty url", func(c *Config) { c.Agenda = []AgendaSource{{ID: "a"}} }},
		{"duplicate id", func(c *Config) {
			c.Agenda = []AgendaSource{{ID: "a", URL: "x.ics"}, {ID: "a", URL: "y.ics"}}
		}},
		{"cron", func(c *Config) { c.RefreshCron = "every minute" }},
		{"auth", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Password: "p"} }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Days = []string{"2014-06-25"}
	cfg.Schedule.AllowedOverlap = 5 * time.Minute
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "allowed_overlap: 5m0s")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	assert.Error(t, Save("", cfg))
	assert.Error(t, Save(path, nil))
}
