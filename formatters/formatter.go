// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package formatters renders run reports.
// It supports a summary table, a detailed outcome table, CSV, HTML and JSON.
package formatters

import (
	"errors"
	"io"

	"github.com/petmal/lwlltrial/runners"
)

// ErrPrintResults indicates that report formatting failed.
var ErrPrintResults = errors.New("failed to print formatted results")

// Formatter handles converting a run report into a specific output format.
type Formatter interface {
	// FileExt returns the formatter's file extension.
	FileExt() string
	// Write outputs the formatted report to the writer.
	Write(report runners.RunReport, out io.Writer) error
}
