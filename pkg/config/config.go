// Package config provides the configuration for sheetsync.
//
// Configuration is read from environment variables (optionally loaded from a
// .env file by the CLI), keeping the original deployment contract:
//
//	WEDOF_API_KEY           provider API key (required)
//	WEDOF_BASE_URL          provider base URL (default https://www.wedof.fr)
//	GOOGLE_CREDENTIALS_PATH service account credentials file (required)
//	GOOGLE_SPREADSHEET_ID   destination spreadsheet (required)
//	SYNC_TIME               daily run time HH:MM (default 09:00)
//
// An optional endpoints YAML file can replace the built-in endpoint catalog.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wedof-tools/sheetsync/pkg/errors"
)

// Config is the full sheetsync configuration.
type Config struct {
	Wedof       WedofConfig       `mapstructure:"wedof"`
	Google      GoogleConfig      `mapstructure:"google"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// WedofConfig configures the source provider client.
type WedofConfig struct {
	// APIKey authenticates against the provider (X-Api-Key header)
	APIKey string `mapstructure:"api_key"`
	// BaseURL is the provider API root
	BaseURL string `mapstructure:"base_url"`
	// MinRequestInterval enforces the published quota (100 req/min)
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	// PageLimit is the page size requested from paginated endpoints
	PageLimit int `mapstructure:"page_limit"`
}

// GoogleConfig configures the destination spreadsheet.
type GoogleConfig struct {
	// CredentialsPath points at a service account JSON file
	CredentialsPath string `mapstructure:"credentials_path"`
	// SpreadsheetID identifies the destination spreadsheet
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
}

// ScheduleConfig configures the daily scheduler.
type ScheduleConfig struct {
	// Time is the daily run time in HH:MM, 24h clock
	Time string `mapstructure:"time"`
}

// ReliabilityConfig contains retry and backoff settings.
type ReliabilityConfig struct {
	// RetryAttempts caps attempts per page for transient failures
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryDelay is the initial backoff delay
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
	// ThrottleRetryLimit caps consecutive 429 retries for one page; these do
	// not consume the transient retry budget
	ThrottleRetryLimit int `mapstructure:"throttle_retry_limit"`
	// QuotaRetryAttempts caps retries of destination quota errors
	QuotaRetryAttempts int `mapstructure:"quota_retry_attempts"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Load reads the configuration from the environment and applies defaults.
// It does not validate; call Validate before use.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("wedof.base_url", "https://www.wedof.fr")
	v.SetDefault("wedof.min_request_interval", "600ms")
	v.SetDefault("wedof.page_limit", 100)
	v.SetDefault("schedule.time", "09:00")
	v.SetDefault("reliability.retry_attempts", 4)
	v.SetDefault("reliability.retry_delay", "1s")
	v.SetDefault("reliability.max_retry_delay", "30s")
	v.SetDefault("reliability.throttle_retry_limit", 10)
	v.SetDefault("reliability.quota_retry_attempts", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")

	// The original deployment variable names stay authoritative.
	bindings := map[string][]string{
		"wedof.api_key":              {"WEDOF_API_KEY"},
		"wedof.base_url":             {"WEDOF_BASE_URL"},
		"google.credentials_path":    {"GOOGLE_CREDENTIALS_PATH"},
		"google.spreadsheet_id":      {"GOOGLE_SPREADSHEET_ID"},
		"schedule.time":              {"SYNC_TIME"},
		"logging.level":              {"LOG_LEVEL"},
		"logging.encoding":           {"LOG_ENCODING"},
		"reliability.retry_attempts": {"SYNC_RETRY_ATTEMPTS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind environment variable")
		}
	}

	// Everything else is reachable as SHEETSYNC_SECTION_KEY.
	v.SetEnvPrefix("SHEETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse configuration")
	}

	return &cfg, nil
}

// Validate checks required settings and reports every missing variable at
// once rather than one at a time.
func (c *Config) Validate() error {
	var missing []string

	if c.Wedof.APIKey == "" {
		missing = append(missing, "WEDOF_API_KEY")
	}
	if c.Google.CredentialsPath == "" {
		missing = append(missing, "GOOGLE_CREDENTIALS_PATH")
	}
	if c.Google.SpreadsheetID == "" {
		missing = append(missing, "GOOGLE_SPREADSHEET_ID")
	}

	if len(missing) > 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if _, err := time.Parse("15:04", c.Schedule.Time); err != nil {
		return errors.Newf(errors.ErrorTypeConfig,
			"invalid SYNC_TIME %q: expected HH:MM", c.Schedule.Time)
	}

	if c.Wedof.PageLimit <= 0 {
		c.Wedof.PageLimit = 100
	}
	if c.Reliability.RetryAttempts <= 0 {
		c.Reliability.RetryAttempts = 4
	}
	if c.Reliability.ThrottleRetryLimit <= 0 {
		c.Reliability.ThrottleRetryLimit = 10
	}
	if c.Reliability.QuotaRetryAttempts <= 0 {
		c.Reliability.QuotaRetryAttempts = 3
	}

	return nil
}
