package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 2000, cfg.Quota.InspectionDailyLimit)
	require.Equal(t, 200, cfg.Quota.SubmissionDailyLimit)
	require.Equal(t, 50, cfg.GSC.BatchSize)
	require.Equal(t, 20*time.Second, cfg.CallTimeout())
	require.Equal(t, 120*time.Millisecond, cfg.InspectPace())
	require.Equal(t, 350*time.Millisecond, cfg.SubmitPace())
	require.Equal(t, 5*time.Minute, cfg.RefreshLeeway())
	require.Equal(t, 1, cfg.Sweep.Concurrency)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9090
quota:
  inspection_daily_limit: 100
gsc:
  inspect_pace_ms: 10
sweep:
  concurrency: 4
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 100, cfg.Quota.InspectionDailyLimit)
	require.Equal(t, 10*time.Millisecond, cfg.InspectPace())
	require.Equal(t, 4, cfg.Sweep.Concurrency)
	// untouched sections keep defaults
	require.Equal(t, 200, cfg.Quota.SubmissionDailyLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero timeout", func(c *Config) { c.GSC.TimeoutSeconds = 0 }},
		{"zero batch size", func(c *Config) { c.GSC.BatchSize = 0 }},
		{"zero inspection limit", func(c *Config) { c.Quota.InspectionDailyLimit = 0 }},
		{"zero submission limit", func(c *Config) { c.Quota.SubmissionDailyLimit = 0 }},
		{"zero sweep concurrency", func(c *Config) { c.Sweep.Concurrency = 0 }},
		{"auth enabled without key", func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKey = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
