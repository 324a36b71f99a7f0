// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package testutils provides utilities for building dataset directory fixtures,
// faking the evaluation API, and making assertions in tests.
package testutils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SyncCall executes the provided function while holding the specified mutex lock.
func SyncCall(lock *sync.Mutex, fn func()) {
	lock.Lock()
	defer lock.Unlock()
	fn()
}

// CreateMockFile creates a temporary file with the given name pattern and contents,
// returning the file path.
func CreateMockFile(t *testing.T, namePattern string, contents []byte) string {
	fp := CreateOpenNewTestFile(t, namePattern)
	defer fp.Close()

	if _, err := fp.Write(contents); err != nil {
		t.Fatalf("failed to write test file: %v\n", err)
	}

	return fp.Name()
}

// CreateOpenNewTestFile creates and opens a new temporary test file with the given name pattern.
// The caller is responsible for closing the file.
func CreateOpenNewTestFile(t *testing.T, namePattern string) *os.File {
	fp, err := os.CreateTemp("", namePattern)
	if err != nil {
		t.Fatalf("failed to create test file: %v\n", err)
	}
	return fp
}

// AssertFileContains checks if a file contains all strings from want slice and none from notWant slice.
func AssertFileContains(t *testing.T, filePath string, want []string, notWant []string) {
	if contents := ReadFile(t, filePath); len(want) > 0 {
		require.NotEmpty(t, contents)
		AssertContainsAll(t, string(contents), want)
		AssertContainsNone(t, string(contents), notWant)
	} else {
		assert.Empty(t, contents)
	}
}

// AssertContainsAll verifies that the given contents string contains all specified elements.
func AssertContainsAll(t *testing.T, contents string, elements []string) {
	for i := range elements {
		assert.Contains(t, string(contents), elements[i])
	}
}

// AssertContainsNone verifies that the given contents string contains none of the specified elements.
func AssertContainsNone(t *testing.T, contents string, elements []string) {
	for i := range elements {
		assert.NotContains(t, string(contents), elements[i])
	}
}

// AssertFileContentsSameAs verifies that two files have identical contents.
func AssertFileContentsSameAs(t *testing.T, wantFilePath string, gotFilePath string) {
	want := ReadFile(t, wantFilePath)
	got := ReadFile(t, gotFilePath)
	assert.Equal(t, string(want), string(got))
}

// ReadFile reads the entire file at the given path and returns its contents.
func ReadFile(t *testing.T, filePath string) []byte {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("failed to read test file: %v\n", err)
	}
	return contents
}

// CreateDatasetDir creates a temporary dataset root containing the given
// slash-separated subdirectories and returns its path.
func CreateDatasetDir(t *testing.T, subdirs ...string) string {
	root := t.TempDir()
	for _, dir := range subdirs {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755); err != nil {
			t.Fatalf("failed to create dataset directory: %v\n", err)
		}
	}
	return root
}

// WriteDatasetFiles creates empty (or given) files under root.
// Keys are slash-separated paths relative to root.
func WriteDatasetFiles(t *testing.T, root string, files map[string]string) {
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dataset directory: %v\n", err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatalf("failed to write dataset file: %v\n", err)
		}
	}
}
