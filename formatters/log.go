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

	"github.com/petmal/lwlltrial/runners"
)

// NewLogFormatter creates a new formatter that outputs every task outcome as an ASCII table.
func NewLogFormatter() Formatter {
	return &logFormatter{}
}

type logFormatter struct{}

func (f logFormatter) FileExt() string {
	return "log"
}

func (f logFormatter) Write(report runners.RunReport, out io.Writer) error {
	tab := tabwriter.NewWriter(out, 0, 0, 1, ' ', tabwriter.Debug)
	defer tab.Flush()
	if _, err := fmt.Fprintln(tab, "ID\tDataset Type\tProblem Type\tTask\tStatus\tState\tCheckpoints\tSubmissions\tDuration\tReason\t"); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	for _, outcome := range report.Outcomes {
		if _, err := fmt.Fprintf(tab, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t\n",
			outcome.GetID(), outcome.Cell.DatasetType, outcome.Cell.ProblemType, TaskName(outcome),
			ToStatus(outcome.Status), outcome.State, outcome.Checkpoints, outcome.Submissions,
			RoundToMS(outcome.Duration), outcome.Reason); err != nil {
			return fmt.Errorf("%w: %v", ErrPrintResults, err)
		}
	}
	return nil
}
