// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config holding every default.
// - Load layers an optional YAML file and KPI_ env vars on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Data sources for tasks, users and sprints.
const (
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Source selects where snapshots are loaded from: http or sqlite.
	Source string `koanf:"source"`

	// TrackerURL is the base URL of the task tracker REST API.
	TrackerURL string `koanf:"tracker_url"`

	// TrackerTimeoutMS bounds each tracker request.
	TrackerTimeoutMS int `koanf:"tracker_timeout_ms"`

	// TrackerRPS and TrackerBurst rate-limit requests to the tracker.
	TrackerRPS   float64 `koanf:"tracker_rps"`
	TrackerBurst int     `koanf:"tracker_burst"`

	// SQLitePath is the database file used when Source is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// RefreshQueueSize bounds pending refresh requests.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// RefreshIntervalS triggers periodic refreshes; 0 disables them.
	RefreshIntervalS int `koanf:"refresh_interval_s"`

	// MemoSize caps memoised snapshots; <= 0 means unbounded.
	MemoSize int `koanf:"memo_size"`

	// Locale orders sprint names, as a BCP 47 tag.
	Locale string `koanf:"locale"`

	// MetricsEnabled turns the aggregation and refresh counters on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace and MetricsPrefix shape exported metric names.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsPrefix    string `koanf:"metrics_prefix"`

	// MetricsLabels are constant labels as comma-separated key=value pairs,
	// e.g. "env=prod,team=core".
	MetricsLabels string `koanf:"metrics_labels"`

	// MetricsBucketsMS overrides the latency histogram buckets. Empty keeps
	// the built-in millisecond buckets.
	MetricsBucketsMS []float64 `koanf:"metrics_buckets_ms"`

	// MetricsIntervalS is how often gauges are refreshed.
	MetricsIntervalS int `koanf:"metrics_interval_s"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Source:           SourceHTTP,
		TrackerURL:       "http://localhost:8080",
		TrackerTimeoutMS: 5_000,
		TrackerRPS:       20,
		TrackerBurst:     5,
		SQLitePath:       "kpiboard.db",
		RefreshQueueSize: 8,
		RefreshIntervalS: 0,
		MemoSize:         16,
		Locale:           "en",
		MetricsEnabled:   true,
		MetricsNamespace: "kpiboard",
		MetricsIntervalS: 10,
	}
}

// TrackerTimeout returns TrackerTimeoutMS as a duration.
func (c *Config) TrackerTimeout() time.Duration {
	return time.Duration(c.TrackerTimeoutMS) * time.Millisecond
}

// RefreshInterval returns RefreshIntervalS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalS) * time.Second
}

// MetricsInterval returns MetricsIntervalS as a duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalS) * time.Second
}

// MetricLabels parses MetricsLabels. An empty string yields no labels.
func (c *Config) MetricLabels() (map[string]string, error) {
	labels := map[string]string{}
	for _, pair := range strings.Split(c.MetricsLabels, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || !metricName.MatchString(k) {
			return nil, fmt.Errorf("%w: metrics_labels: bad pair %q", ErrInvalidConfig, pair)
		}
		labels[k] = strings.TrimSpace(v)
	}
	return labels, nil
}

// LocaleTag parses Locale.
func (c *Config) LocaleTag() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("%w: locale %q: %v", ErrInvalidConfig, c.Locale, err)
	}
	return tag, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.Source {
	case SourceHTTP:
		if c.TrackerURL == "" {
			return fmt.Errorf("%w: tracker_url must not be empty", ErrInvalidConfig)
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: source must be %s or %s, got %q", ErrInvalidConfig, SourceHTTP, SourceSQLite, c.Source)
	}
	if c.TrackerTimeoutMS <= 0 {
		return fmt.Errorf("%w: tracker_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.TrackerRPS <= 0 || c.TrackerBurst <= 0 {
		return fmt.Errorf("%w: tracker_rps and tracker_burst must be positive", ErrInvalidConfig)
	}
	if c.RefreshQueueSize <= 0 {
		return fmt.Errorf("%w: refresh_queue_size must be positive", ErrInvalidConfig)
	}
	if c.RefreshIntervalS < 0 {
		return fmt.Errorf("%w: refresh_interval_s must not be negative", ErrInvalidConfig)
	}
	if _, err := c.LocaleTag(); err != nil {
		return err
	}
	return c.validateMetrics()
}

func (c *Config) validateMetrics() error {
	if !metricName.MatchString(c.MetricsNamespace) {
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name", ErrInvalidConfig, c.MetricsNamespace)
	}
	if c.MetricsPrefix != "" && !metricName.MatchString(c.MetricsPrefix) {
		return fmt.Errorf("%w: metrics_prefix %q is not a valid metric name", ErrInvalidConfig, c.MetricsPrefix)
	}
	if _, err := c.MetricLabels(); err != nil {
		return err
	}
	for i, b := range c.MetricsBucketsMS {
		if b <= 0 || (i > 0 && b <= c.MetricsBucketsMS[i-1]) {
			return fmt.Errorf("%w: metrics_buckets_ms must be positive and increasing", ErrInvalidConfig)
		}
	}
	if c.MetricsIntervalS <= 0 {
		return fmt.Errorf("%w: metrics_interval_s must be positive", ErrInvalidConfig)
	}
	return nil
}
