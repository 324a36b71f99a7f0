// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package version reports the LwLLTrial application name and the module
// version baked into the binary.
package version

import (
	"runtime/debug"
	"sync"
)

// Name of the application.
const Name string = "LwLLTrial"

const develVersion = "(devel)"

var buildInfo = sync.OnceValue(func() debug.Module {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main
	}
	return debug.Module{Version: develVersion}
})

// GetVersion returns the module version of the running binary.
// Binaries built outside of module mode report "(devel)".
func GetVersion() string {
	if v := buildInfo().Version; v != "" {
		return v
	}
	return develVersion
}

// GetSource returns the module path of the main package.
func GetSource() string {
	return buildInfo().Path
}

// UserAgent returns the value sent in the User-Agent header of API requests.
func UserAgent() string {
	return Name + "/" + GetVersion()
}
