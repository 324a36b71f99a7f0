// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"fmt"
	"io"
	"text/tabwriter"

	"charm.land/lipgloss/v2"

	"github.com/petmal/lwlltrial/runners"
)

const (
	passedColor = "2" // green
	failedColor = "1" // red
)

// NewSummaryLogFormatter creates a new formatter that outputs the report as an ASCII table summary
// with one row per matrix cell.
func NewSummaryLogFormatter() Formatter {
	return &summaryLogFormatter{}
}

// NewColorSummaryLogFormatter is like NewSummaryLogFormatter but highlights the run verdict.
// Use it only when writing to a terminal.
func NewColorSummaryLogFormatter() Formatter {
	return &summaryLogFormatter{colored: true}
}

type summaryLogFormatter struct {
	colored bool
}

func (f summaryLogFormatter) FileExt() string {
	return "summary.log"
}

func (f summaryLogFormatter) Write(report runners.RunReport, out io.Writer) error {
	tab := tabwriter.NewWriter(out, 0, 0, 1, ' ', tabwriter.Debug)
	if _, err := fmt.Fprintf(tab, "Dataset Type\tProblem Type\t%s\t%s\t%s\tSuccess Rate (%%)\tTotal Duration\t\n", Success, Failed, Skipped); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	durations := CellDurations(report)
	for _, cell := range report.ByCell {
		if _, err := fmt.Fprintf(tab, "%s\t%s\t%d\t%d\t%d\t%.2f\t%s\t\n",
			cell.Cell.DatasetType, cell.Cell.ProblemType,
			cell.Counts.Success, cell.Counts.Failed, cell.Counts.Skipped,
			Percent(SuccessRate(cell.Counts)),
			RoundToMS(durations[cell.Cell])); err != nil {
			return fmt.Errorf("%w: %v", ErrPrintResults, err)
		}
	}
	if _, err := fmt.Fprintf(tab, "total\t\t%d\t%d\t%d\t%.2f\t%s\t\n",
		report.Totals.Success, report.Totals.Failed, report.Totals.Skipped,
		Percent(SuccessRate(report.Totals)),
		RoundToMS(TotalDuration(report.Outcomes, runners.StatusSuccess, runners.StatusFailed, runners.StatusSkipped))); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}
	if err := tab.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	if _, err := fmt.Fprintf(out, "run %s: %s\n", report.RunID, f.verdict(report)); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}
	return nil
}

func (f summaryLogFormatter) verdict(report runners.RunReport) string {
	verdict, color := "PASSED", passedColor
	if !report.Clean() {
		verdict, color = "FAILED", failedColor
	}
	if f.colored {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(verdict)
	}
	return verdict
}
