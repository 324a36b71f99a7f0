// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"path/filepath"
	"testing"

	"github.com/petmal/lwlltrial/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvironment(t *testing.T) {
	devLayout := testutils.CreateDatasetDir(t, ExternalDir, DevelopmentDir)
	evalLayout := testutils.CreateDatasetDir(t, ExternalDir, EvaluationDir)
	noExternal := testutils.CreateDatasetDir(t, DevelopmentDir, EvaluationDir)
	fileAsDir := testutils.CreateDatasetDir(t, ExternalDir)
	testutils.WriteDatasetFiles(t, fileAsDir, map[string]string{DevelopmentDir: "not a directory"})

	tests := []struct {
		name       string
		env        Environment
		datasetDir string
		overrides  map[string]string
		want       string
		wantErr    string
	}{
		{
			name:       "dev accepts development layout",
			env:        EnvDev,
			datasetDir: devLayout,
			want:       "https://api-dev.lollllz.com",
		},
		{
			name:       "local resolves loopback",
			env:        EnvLocal,
			datasetDir: devLayout,
			want:       "http://localhost:5000",
		},
		{
			name:       "staging accepts development layout",
			env:        EnvStaging,
			datasetDir: devLayout,
			want:       "https://api-staging.lollllz.com",
		},
		{
			name:       "prod accepts evaluation layout",
			env:        EnvProd,
			datasetDir: evalLayout,
			want:       "https://api-prod.lollllz.com",
		},
		{
			name:       "prod rejects missing evaluation directory",
			env:        EnvProd,
			datasetDir: devLayout,
			wantErr:    "can't find `evaluation` dataset directory while running in `prod` mode",
		},
		{
			name:       "dev rejects missing development directory",
			env:        EnvDev,
			datasetDir: evalLayout,
			wantErr:    "can't find `development` dataset directory while running in `dev` mode",
		},
		{
			name:       "external directory is required",
			env:        EnvDev,
			datasetDir: noExternal,
			wantErr:    "can't find `external` dataset directory",
		},
		{
			name:       "working directory must be a directory",
			env:        EnvDev,
			datasetDir: fileAsDir,
			wantErr:    "not a directory",
		},
		{
			name:       "missing dataset root",
			env:        EnvDev,
			datasetDir: filepath.Join(devLayout, "missing"),
			wantErr:    "`dataset_dir` does not exist",
		},
		{
			name:    "unknown environment",
			env:     Environment(42),
			wantErr: "expected one of [local dev staging prod]",
		},
		{
			name:       "override endpoint",
			env:        EnvDev,
			datasetDir: devLayout,
			overrides:  map[string]string{"dev": "http://127.0.0.1:8080", "prod": "http://unused"},
			want:       "http://127.0.0.1:8080",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateEnvironment(tt.env, tt.datasetDir, tt.overrides)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrConfiguration)
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultEndpoint(t *testing.T) {
	for _, env := range []Environment{EnvLocal, EnvDev, EnvStaging, EnvProd} {
		assert.NotEmpty(t, DefaultEndpoint(env), env.String())
	}
}
