// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/petmal/lwlltrial/runners"
)

// NewJSONFormatter creates a new formatter that outputs the complete report as indented JSON.
func NewJSONFormatter() Formatter {
	return &jsonFormatter{}
}

type jsonFormatter struct{}

func (f jsonFormatter) FileExt() string {
	return "json"
}

func (f jsonFormatter) Write(report runners.RunReport, out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}
	return nil
}
