// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every configuration error.
// Configuration errors are fatal: no task is run once one has been reported.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError describes an invalid setting, flag combination or dataset layout.
type ConfigurationError struct {
	// Field names the flag or setting at fault.
	Field string
	// Value is the offending value, if any.
	Value string
	// Reason explains what was expected.
	Reason string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%v: invalid `%s`", ErrConfiguration, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrConfiguration, e.Cause}
	}
	return []error{ErrConfiguration}
}
