// Package config loads service settings from an optional TOML file with
// environment variable overrides. Settings are resolved once at startup and
// are read-only for the process lifetime.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/gradle"
	"github.com/depscout/depscout/pkg/pipeline"
	"github.com/depscout/depscout/pkg/scheduler"
)

// Default settings applied when neither file nor environment provides a
// value.
const (
	DefaultListenAddr = ":8080"
)

// Duration wraps time.Duration so TOML files can spell durations as
// strings, e.g. timeout = "10m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for toml decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the setting as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings is the full service configuration.
type Settings struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `toml:"listen_addr"`

	// WorkspaceRoot is the directory that holds repository snapshots.
	// Empty means the system temporary directory.
	WorkspaceRoot string `toml:"workspace_root"`

	// ConcurrencyCap bounds simultaneously running jobs.
	ConcurrencyCap int `toml:"concurrency_cap"`

	// MaxQueued bounds the submission queue.
	MaxQueued int `toml:"max_queued"`

	// JobTimeout is the per-job wall clock budget.
	JobTimeout Duration `toml:"job_timeout"`

	// Retention is how long finished jobs stay queryable.
	Retention Duration `toml:"retention"`

	// MatchMode is the default dependency match mode: "exact" or
	// "substring".
	MatchMode string `toml:"match_mode"`

	// FanOut bounds concurrent Gradle invocations within one job.
	FanOut int `toml:"fan_out"`

	// Configurations are the Gradle configurations resolved per descriptor.
	Configurations []string `toml:"configurations"`

	// GradlePath overrides the gradle binary used when a snapshot carries no
	// wrapper. Empty means "gradle" from PATH.
	GradlePath string `toml:"gradle_path"`
}

// Load reads settings from path (skipped when empty or missing), applies
// environment overrides, then defaults, and validates the result.
func Load(path string) (Settings, error) {
	var s Settings

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Settings{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &s); err != nil {
				return Settings{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
			}
		}
	}

	s.applyEnv()
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Environment overrides, one variable per setting.
func (s *Settings) applyEnv() {
	setString(&s.ListenAddr, "DEPSCOUT_LISTEN_ADDR")
	setString(&s.WorkspaceRoot, "DEPSCOUT_WORKSPACE_ROOT")
	setInt(&s.ConcurrencyCap, "DEPSCOUT_CONCURRENCY_CAP")
	setInt(&s.MaxQueued, "DEPSCOUT_MAX_QUEUED")
	setDuration(&s.JobTimeout, "DEPSCOUT_JOB_TIMEOUT")
	setDuration(&s.Retention, "DEPSCOUT_RETENTION")
	setString(&s.MatchMode, "DEPSCOUT_MATCH_MODE")
	setInt(&s.FanOut, "DEPSCOUT_FAN_OUT")
	setString(&s.GradlePath, "DEPSCOUT_GRADLE_PATH")
}

func (s *Settings) applyDefaults() {
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.ConcurrencyCap <= 0 {
		s.ConcurrencyCap = scheduler.DefaultConcurrencyCap
	}
	if s.MaxQueued <= 0 {
		s.MaxQueued = scheduler.DefaultMaxQueued
	}
	if s.JobTimeout <= 0 {
		s.JobTimeout = Duration(scheduler.DefaultJobTimeout)
	}
	if s.Retention <= 0 {
		s.Retention = Duration(scheduler.DefaultRetention)
	}
	if s.MatchMode == "" {
		s.MatchMode = string(gradle.MatchExact)
	}
	if s.FanOut <= 0 {
		s.FanOut = pipeline.DefaultFanOut
	}
	if len(s.Configurations) == 0 {
		s.Configurations = pipeline.DefaultConfigurations()
	}
}

func (s *Settings) validate() error {
	if !gradle.ValidMatchModes[gradle.MatchMode(s.MatchMode)] {
		return errors.New(errors.ErrCodeInvalidMatchMode, "unknown match mode %q", s.MatchMode)
	}
	for _, cfg := range s.Configurations {
		if cfg == "" {
			return errors.New(errors.ErrCodeInvalidInput, "empty configuration name")
		}
	}
	return nil
}

// SchedulerConfig maps the settings onto scheduler tuning.
func (s Settings) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		ConcurrencyCap: s.ConcurrencyCap,
		MaxQueued:      s.MaxQueued,
		JobTimeout:     s.JobTimeout.Std(),
		Retention:      s.Retention.Std(),
	}
}

// PipelineOptions maps the settings onto pipeline tuning.
func (s Settings) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Configurations: s.Configurations,
		FanOut:         s.FanOut,
		DefaultMode:    gradle.MatchMode(s.MatchMode),
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
