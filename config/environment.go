// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dataset directory layout expected under the dataset root.
const (
	// ExternalDir holds the external (pre-training) datasets. Required in every environment.
	ExternalDir = "external"
	// DevelopmentDir holds the development datasets used by the local, dev and staging environments.
	DevelopmentDir = "development"
	// EvaluationDir holds the evaluation datasets used by the prod environment.
	EvaluationDir = "evaluation"
)

var defaultEndpoints = map[Environment]string{
	EnvLocal:   "http://localhost:5000",
	EnvDev:     "https://api-dev.lollllz.com",
	EnvStaging: "https://api-staging.lollllz.com",
	EnvProd:    "https://api-prod.lollllz.com",
}

// DefaultEndpoint returns the built-in API endpoint of the given environment.
func DefaultEndpoint(env Environment) string {
	return defaultEndpoints[env]
}

// ValidateEnvironment checks that datasetDir has the layout required by env and
// resolves the API endpoint to use. Endpoints in overrides, keyed by environment name,
// take precedence over the built-in ones.
//
// The dataset root must contain the external directory and either the development
// directory (local, dev, staging) or the evaluation directory (prod).
// Any violation is reported as a ConfigurationError.
func ValidateEnvironment(env Environment, datasetDir string, overrides map[string]string) (endpoint string, err error) {
	if !env.IsKnown() {
		return "", newEnumError("environment", env.String(), EnvironmentNames())
	}

	if err = requireDir("dataset_dir", datasetDir, "`dataset_dir` does not exist"); err != nil {
		return
	}

	workingDir := env.WorkingDir()
	if err = requireDir("dataset_dir", filepath.Join(datasetDir, workingDir),
		fmt.Sprintf("can't find `%s` dataset directory while running in `%s` mode", workingDir, env)); err != nil {
		return
	}

	if err = requireDir("dataset_dir", filepath.Join(datasetDir, ExternalDir),
		fmt.Sprintf("can't find `%s` dataset directory", ExternalDir)); err != nil {
		return
	}

	if override, ok := overrides[env.String()]; ok && IsNotBlank(override) {
		return override, nil
	}
	return DefaultEndpoint(env), nil
}

func requireDir(field string, path string, reason string) error {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return &ConfigurationError{Field: field, Value: path, Reason: reason, Cause: err}
	case !info.IsDir():
		return &ConfigurationError{Field: field, Value: path, Reason: reason + ": not a directory"}
	}
	return nil
}
