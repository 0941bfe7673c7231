// Package config loads and validates rank checker configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	collyfetcher "github.com/JakeFAU/admissions-rank/internal/fetcher/colly"
	"github.com/JakeFAU/admissions-rank/internal/fetcher/headless"
	"github.com/JakeFAU/admissions-rank/internal/policy/ratelimit"
	"github.com/JakeFAU/admissions-rank/internal/supervisor"
)

// EnvPrefix namespaces environment overrides, e.g. RANKCHECK_CHECK_APPLICANT_ID.
const EnvPrefix = "RANKCHECK"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Check   CheckConfig   `mapstructure:"check"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Browser BrowserConfig `mapstructure:"browser"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CheckConfig names the ranking lists to check and the applicant to look for.
type CheckConfig struct {
	URLs        []string `mapstructure:"urls"`
	ApplicantID string   `mapstructure:"applicant_id"`
}

// FetchConfig controls the attempt supervisor.
type FetchConfig struct {
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	FailureBackoff time.Duration `mapstructure:"failure_backoff"`
	ReleaseGrace   time.Duration `mapstructure:"release_grace"`
	HostRPS        float64       `mapstructure:"host_rps"`
	HostBurst      int           `mapstructure:"host_burst"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	ElementTimeout time.Duration `mapstructure:"element_timeout"`
	ScrollPause    time.Duration `mapstructure:"scroll_pause"`
	SettlePause    time.Duration `mapstructure:"settle_pause"`
	ToggleText     string        `mapstructure:"toggle_text"`
	UserAgent      string        `mapstructure:"user_agent"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	ExecPath       string        `mapstructure:"exec_path"`
}

// HTTPConfig configures the static probe client.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	UserAgent   string        `mapstructure:"user_agent"`
	StaticProbe bool          `mapstructure:"static_probe"`
}

// ReportConfig toggles report output.
type ReportConfig struct {
	ShowTable bool `mapstructure:"show_table"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Verbose     bool `mapstructure:"verbose"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return Read(New(), path)
}

// Read loads the optional file at path into v, then unmarshals and validates.
func Read(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// New returns a Viper instance with defaults and environment bindings applied.
// Callers may bind flags to it before calling FromViper.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper unmarshals and validates v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Check.URLs = cleanURLs(cfg.Check.URLs)
	cfg.Check.ApplicantID = strings.TrimSpace(cfg.Check.ApplicantID)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	sup := supervisor.DefaultConfig()
	v.SetDefault("check.urls", []string{})
	v.SetDefault("check.applicant_id", "")
	v.SetDefault("fetch.attempt_timeout", sup.PerAttemptTimeout)
	v.SetDefault("fetch.max_attempts", sup.MaxAttempts)
	v.SetDefault("fetch.failure_backoff", sup.FailureBackoff)
	v.SetDefault("fetch.release_grace", sup.ReleaseGrace)
	v.SetDefault("fetch.host_rps", 0.0)
	v.SetDefault("fetch.host_burst", 1)

	browser := headless.DefaultConfig()
	v.SetDefault("browser.element_timeout", browser.ElementTimeout)
	v.SetDefault("browser.scroll_pause", browser.ScrollPause)
	v.SetDefault("browser.settle_pause", browser.SettlePause)
	v.SetDefault("browser.toggle_text", browser.ToggleText)
	v.SetDefault("browser.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.exec_path", "")

	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base", 500*time.Millisecond)
	v.SetDefault("http.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("http.static_probe", false)

	v.SetDefault("report.show_table", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.verbose", false)
	v.SetDefault("metrics.listen_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Check.URLs) == 0 {
		return errors.New("check.urls must list at least one URL")
	}
	if c.Check.ApplicantID == "" {
		return errors.New("check.applicant_id must be set")
	}
	if err := c.Supervisor().Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if c.Fetch.HostRPS < 0 {
		return errors.New("fetch.host_rps must be >= 0")
	}
	if c.Browser.ElementTimeout <= 0 {
		return errors.New("browser.element_timeout must be > 0")
	}
	if c.Browser.ScrollPause < 0 || c.Browser.SettlePause < 0 {
		return errors.New("browser pauses must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return errors.New("http.max_retries must be >= 0")
	}
	return nil
}

// Supervisor converts the fetch section into supervisor settings.
func (c Config) Supervisor() supervisor.Config {
	return supervisor.Config{
		PerAttemptTimeout: c.Fetch.AttemptTimeout,
		MaxAttempts:       c.Fetch.MaxAttempts,
		FailureBackoff:    c.Fetch.FailureBackoff,
		ReleaseGrace:      c.Fetch.ReleaseGrace,
	}
}

// RateLimit converts the pacing keys into limiter settings.
func (c Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{RPS: c.Fetch.HostRPS, Burst: c.Fetch.HostBurst}
}

// Driver converts the browser section into driver settings.
func (c Config) Driver() headless.Config {
	return headless.Config{
		ToggleText:     c.Browser.ToggleText,
		ElementTimeout: c.Browser.ElementTimeout,
		ScrollPause:    c.Browser.ScrollPause,
		SettlePause:    c.Browser.SettlePause,
	}
}

// Chromedp converts the browser section into launcher settings.
func (c Config) Chromedp() headless.ChromedpConfig {
	return headless.ChromedpConfig{
		UserAgent: c.Browser.UserAgent,
		NoSandbox: c.Browser.NoSandbox,
		ExecPath:  c.Browser.ExecPath,
	}
}

// Static converts the http section into static fetcher settings.
func (c Config) Static() collyfetcher.Config {
	return collyfetcher.Config{
		UserAgent:   c.HTTP.UserAgent,
		Timeout:     c.HTTP.Timeout,
		MaxRetries:  c.HTTP.MaxRetries,
		BackoffBase: c.HTTP.BackoffBase,
	}
}

// cleanURLs trims entries, drops blanks, and splits comma-joined values that
// arrive from a single environment variable.
func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if u := strings.TrimSpace(part); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}
