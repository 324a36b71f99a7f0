// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/petmal/lwlltrial/pkg/logging"
	"github.com/petmal/lwlltrial/pkg/utils"
)

// RunOptions holds the raw, unvalidated values of a launch request as given on the command line.
type RunOptions struct {
	DatasetType  string          `flag:"dataset_type" validate:"required,oneof=sample full all"`
	ProblemType  string          `flag:"problem_type" validate:"required,oneof=image_classification object_detection video_classification machine_translation all"`
	DatasetDir   string          `flag:"dataset_dir" validate:"required"`
	Environment  string          `flag:"environment" validate:"required,oneof=local dev staging prod"`
	TeamSecret   string          `flag:"team_secret" validate:"required"`
	LogLevel     string          `flag:"log_level" validate:"required,oneof=DEBUG INFO WARNING ERROR"`
	TaskID       string          `flag:"task_id"`
	SkipDatasets utils.StringSet `flag:"skip_dataset"`
	Settings     Settings        `flag:"-"`
}

// RunConfig is the validated, immutable description of a harness run.
// It is constructed once by NewRunConfig and passed by value afterwards.
type RunConfig struct {
	// DatasetType is the selected partition, possibly DatasetAll.
	DatasetType DatasetType
	// ProblemType is the selected problem type, possibly AllProblemTypes.
	ProblemType ProblemType
	// DatasetDir is the absolute path of the dataset root.
	DatasetDir string
	// Environment is the target API deployment.
	Environment Environment
	// TeamSecret authenticates the team against the API.
	TeamSecret string
	// LogLevel is the minimum level of emitted log messages.
	LogLevel slog.Level
	// TaskID restricts the run to a single task when not blank.
	TaskID string
	// SkipDatasets lists datasets whose tasks are left out.
	SkipDatasets utils.StringSet
	// Endpoint is the resolved API base URL.
	Endpoint string
	// Settings holds the remaining tunables with defaults applied.
	Settings Settings
}

// HasTaskFilter reports whether the run is restricted to a single task.
func (c RunConfig) HasTaskFilter() bool {
	return IsNotBlank(c.TaskID)
}

// NewRunConfig validates opts and builds a RunConfig.
// Every failure is a ConfigurationError: enumerations are checked first, then the
// log level and finally the dataset directory layout of the selected environment.
func NewRunConfig(opts RunOptions) (RunConfig, error) {
	if err := validate.Struct(opts); err != nil {
		return RunConfig{}, toConfigurationError(err)
	}

	datasetType, err := ParseDatasetType(opts.DatasetType)
	if err != nil {
		return RunConfig{}, err
	}
	problemType, err := ParseProblemType(opts.ProblemType)
	if err != nil {
		return RunConfig{}, err
	}
	env, err := ParseEnvironment(opts.Environment)
	if err != nil {
		return RunConfig{}, err
	}
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return RunConfig{}, &ConfigurationError{Field: "log_level", Value: opts.LogLevel, Cause: err}
	}

	datasetDir, err := filepath.Abs(opts.DatasetDir)
	if err != nil {
		return RunConfig{}, &ConfigurationError{Field: "dataset_dir", Value: opts.DatasetDir, Cause: err}
	}

	settings := opts.Settings.WithDefaults()
	endpoint, err := ValidateEnvironment(env, datasetDir, settings.Endpoints)
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		DatasetType:  datasetType,
		ProblemType:  problemType,
		DatasetDir:   datasetDir,
		Environment:  env,
		TeamSecret:   opts.TeamSecret,
		LogLevel:     level,
		TaskID:       opts.TaskID,
		SkipDatasets: settings.SkipDatasets.Union(opts.SkipDatasets),
		Endpoint:     endpoint,
		Settings:     settings,
	}, nil
}

func toConfigurationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		reason := "failed on the '" + fe.Tag() + "' rule"
		switch fe.Tag() {
		case "required":
			reason = "missing required value"
		case "oneof":
			reason = "expected one of [" + fe.Param() + "]"
		}
		return &ConfigurationError{Field: fe.Field(), Value: fmt.Sprint(fe.Value()), Reason: reason}
	}
	return &ConfigurationError{Field: "launch_system", Cause: err}
}
