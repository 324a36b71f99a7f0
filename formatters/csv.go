// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/petmal/lwlltrial/runners"
)

// NewCSVFormatter creates a new formatter that outputs task outcomes in CSV format.
func NewCSVFormatter() Formatter {
	return &csvFormatter{}
}

type csvFormatter struct{}

func (f csvFormatter) FileExt() string {
	return "csv"
}

func (f csvFormatter) Write(report runners.RunReport, out io.Writer) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	headers := []string{"Run", "Dataset Type", "Problem Type", "Task", "Status", "State", "Checkpoints", "Submissions", "Duration", "Session", "Reason"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	for _, outcome := range report.Outcomes {
		row := []string{
			report.RunID,
			outcome.Cell.DatasetType.String(),
			outcome.Cell.ProblemType.String(),
			outcome.TaskID,
			ToStatus(outcome.Status),
			outcome.State.String(),
			strconv.Itoa(outcome.Checkpoints),
			strconv.Itoa(outcome.Submissions),
			RoundToMS(outcome.Duration).String(),
			outcome.SessionName,
			outcome.Reason,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("%w: %v", ErrPrintResults, err)
		}
	}
	return nil
}
