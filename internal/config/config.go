// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	DB      DBConfig      `mapstructure:"db"`
	GSC     GSCConfig     `mapstructure:"gsc"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles for the interactive surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls the Postgres connection pool.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// GSCConfig governs the external inspection/indexing API client.
type GSCConfig struct {
	InspectEndpoint string `mapstructure:"inspect_endpoint"`
	SubmitEndpoint  string `mapstructure:"submit_endpoint"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	InspectPaceMs   int    `mapstructure:"inspect_pace_ms"`
	SubmitPaceMs    int    `mapstructure:"submit_pace_ms"`
	BatchSize       int    `mapstructure:"batch_size"`
}

// QuotaConfig fixes the daily budgets per action type.
type QuotaConfig struct {
	InspectionDailyLimit int `mapstructure:"inspection_daily_limit"`
	SubmissionDailyLimit int `mapstructure:"submission_daily_limit"`
}

// SweepConfig controls the autonomous periodic pass.
type SweepConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	CronExpr    string `mapstructure:"cron"`
	Concurrency int    `mapstructure:"concurrency"`
}

// OAuthConfig configures token refresh against the external auth service.
type OAuthConfig struct {
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	TokenURL      string `mapstructure:"token_url"`
	RefreshLeeway int    `mapstructure:"refresh_leeway_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("gsc.inspect_endpoint", "https://searchconsole.googleapis.com/v1/urlInspection/index:inspect")
	v.SetDefault("gsc.submit_endpoint", "https://indexing.googleapis.com/v3/urlNotifications:publish")
	v.SetDefault("gsc.timeout_seconds", 20)
	v.SetDefault("gsc.inspect_pace_ms", 120)
	v.SetDefault("gsc.submit_pace_ms", 350)
	v.SetDefault("gsc.batch_size", 50)
	v.SetDefault("quota.inspection_daily_limit", 2000)
	v.SetDefault("quota.submission_daily_limit", 200)
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.cron", "0 3 * * *")
	v.SetDefault("sweep.concurrency", 1)
	v.SetDefault("oauth.refresh_leeway_seconds", 300)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.GSC.TimeoutSeconds <= 0 {
		return fmt.Errorf("gsc.timeout_seconds must be > 0")
	}
	if c.GSC.BatchSize <= 0 {
		return fmt.Errorf("gsc.batch_size must be > 0")
	}
	if c.Quota.InspectionDailyLimit <= 0 {
		return fmt.Errorf("quota.inspection_daily_limit must be > 0")
	}
	if c.Quota.SubmissionDailyLimit <= 0 {
		return fmt.Errorf("quota.submission_daily_limit must be > 0")
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// CallTimeout returns the per-call deadline for external API requests.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.GSC.TimeoutSeconds) * time.Second
}

// InspectPace returns the inter-call delay on the inspection path.
func (c Config) InspectPace() time.Duration {
	return time.Duration(c.GSC.InspectPaceMs) * time.Millisecond
}

// SubmitPace returns the inter-call delay on the submission path.
func (c Config) SubmitPace() time.Duration {
	return time.Duration(c.GSC.SubmitPaceMs) * time.Millisecond
}

// RefreshLeeway returns how close to expiry a token triggers a refresh.
func (c Config) RefreshLeeway() time.Duration {
	return time.Duration(c.OAuth.RefreshLeeway) * time.Second
}
