// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/petmal/lwlltrial/pkg/utils"
)

const (
	// DefaultRequestTimeout bounds every API call unless overridden.
	DefaultRequestTimeout = 60 * time.Second
	// DefaultMaxCheckpoints bounds the number of checkpoint exchanges in one session.
	DefaultMaxCheckpoints = 64
)

// SettingsFile represents the top-level structure of the optional settings file.
type SettingsFile struct {
	// Settings contains the harness settings.
	Settings Settings `yaml:"settings"`
}

// Settings holds tunables that are not exposed as required command line flags.
type Settings struct {
	// Endpoints overrides the API endpoint of individual environments.
	Endpoints map[string]string `yaml:"endpoints" validate:"omitempty,dive,keys,oneof=local dev staging prod,endkeys,url"`

	// RequestTimeout bounds each API call. A call that times out fails its task.
	RequestTimeout time.Duration `yaml:"request-timeout" validate:"omitempty,min=0"`

	// MaxRequestsPerMinute limits the API request rate. Zero disables limiting.
	MaxRequestsPerMinute int `yaml:"max-requests-per-minute" validate:"omitempty,min=0"`

	// RetryPolicy controls retries of transient API errors.
	RetryPolicy RetryPolicy `yaml:"retry-policy"`

	// MaxCheckpoints bounds the checkpoint exchanges of a single session.
	MaxCheckpoints int `yaml:"max-checkpoints" validate:"omitempty,min=1"`

	// SkipDatasets lists base or adaptation datasets whose tasks are left out.
	SkipDatasets utils.StringSet `yaml:"skip-datasets"`

	// SessionNamePrefix is prepended to the generated session names.
	SessionNamePrefix string `yaml:"session-name-prefix"`

	// OutputDir specifies directory where reports will be saved.
	OutputDir string `yaml:"output-dir"`

	// OutputBaseName specifies base filename for report files.
	OutputBaseName string `yaml:"output-basename" validate:"omitempty,filepath"`

	// LogFile specifies path to the log file.
	LogFile string `yaml:"log-file" validate:"omitempty,filepath"`
}

// RetryPolicy defines retry behavior on transient API errors (connection failures,
// throttling and gateway errors). Authentication, not-found, malformed-response
// and timeout errors are never retried.
type RetryPolicy struct {
	// MaxRetryAttempts specifies the maximum number of retry attempts. Zero disables retries.
	MaxRetryAttempts uint `yaml:"max-retry-attempts" validate:"omitempty,min=0"`

	// InitialDelaySeconds specifies the initial backoff delay in seconds.
	InitialDelaySeconds int `yaml:"initial-delay-seconds" validate:"omitempty,gt=0"`
}

// Enabled reports whether any retry is allowed.
func (p RetryPolicy) Enabled() bool {
	return p.MaxRetryAttempts > 0
}

// InitialDelay returns the first backoff delay, defaulting to one second.
func (p RetryPolicy) InitialDelay() time.Duration {
	if p.InitialDelaySeconds > 0 {
		return time.Duration(p.InitialDelaySeconds) * time.Second
	}
	return time.Second
}

// DefaultSettings returns the settings used when no settings file is given.
func DefaultSettings() Settings {
	return Settings{
		RequestTimeout: DefaultRequestTimeout,
		MaxCheckpoints: DefaultMaxCheckpoints,
	}
}

// WithDefaults returns a copy of s where unset values are replaced by their defaults.
func (s Settings) WithDefaults() Settings {
	defaults := DefaultSettings()
	if s.RequestTimeout == 0 {
		s.RequestTimeout = defaults.RequestTimeout
	}
	if s.MaxCheckpoints == 0 {
		s.MaxCheckpoints = defaults.MaxCheckpoints
	}
	return s
}

// LoadSettingsFromFile reads and validates harness settings from the specified file path.
// Returns error if the file cannot be read or contains invalid settings.
func LoadSettingsFromFile(ctx context.Context, path string) (*SettingsFile, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "config", Value: path, Reason: "failed to open settings file", Cause: err}
	}
	defer fp.Close()

	fileContents, err := io.ReadAll(fp)
	if err != nil {
		return nil, &ConfigurationError{Field: "config", Value: path, Reason: "failed to read settings file", Cause: err}
	}

	cfg := &SettingsFile{}
	if err := yamlUnmarshalStrict(fileContents, cfg); err != nil {
		return nil, &ConfigurationError{Field: "config", Value: path, Reason: "malformed settings file", Cause: err}
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, &ConfigurationError{Field: "config", Value: path, Reason: "invalid settings definition", Cause: err}
	}

	cfg.Settings = cfg.Settings.WithDefaults()
	return cfg, nil
}

func (s Settings) String() string {
	return fmt.Sprintf("timeout=%s rpm=%d retries=%d checkpoints=%d skip=[%s]",
		s.RequestTimeout, s.MaxRequestsPerMinute, s.RetryPolicy.MaxRetryAttempts, s.MaxCheckpoints, s.SkipDatasets)
}
