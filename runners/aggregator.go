// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package runners

import (
	"slices"
	"sync"
	"time"

	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/matrix"
)

// Counts tallies outcomes by status.
type Counts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Total returns the number of counted outcomes.
func (c Counts) Total() int {
	return c.Success + c.Failed + c.Skipped
}

// Of returns the count of the given status.
func (c Counts) Of(status Status) int {
	switch status {
	case StatusSuccess:
		return c.Success
	case StatusFailed:
		return c.Failed
	case StatusSkipped:
		return c.Skipped
	}
	return 0
}

func (c *Counts) add(status Status) {
	switch status {
	case StatusSuccess:
		c.Success++
	case StatusFailed:
		c.Failed++
	case StatusSkipped:
		c.Skipped++
	}
}

// CellCounts are the counts of one matrix cell.
type CellCounts struct {
	Cell   matrix.Cell `json:"cell"`
	Counts Counts      `json:"counts"`
}

// RunReport is the final summary of a run. Outcomes are in recording order.
type RunReport struct {
	RunID         string                        `json:"run_id"`
	StartedAt     time.Time                     `json:"started_at"`
	FinishedAt    time.Time                     `json:"finished_at"`
	Outcomes      []TaskOutcome                 `json:"outcomes"`
	Totals        Counts                        `json:"totals"`
	ByProblemType map[config.ProblemType]Counts `json:"by_problem_type"`
	ByDatasetType map[config.DatasetType]Counts `json:"by_dataset_type"`
	// ByCell holds one entry per cell in order of first appearance.
	ByCell []CellCounts `json:"by_cell"`
}

// Clean reports whether no outcome failed. Skipped outcomes keep a run clean.
func (r RunReport) Clean() bool {
	return r.Totals.Failed == 0
}

// Duration returns the wall clock time of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aggregator collects task outcomes into a RunReport.
// Recording is append-only: an outcome cannot be replaced or recorded twice.
type Aggregator struct {
	runID     string
	startedAt time.Time
	now       func() time.Time

	mu       sync.Mutex
	outcomes []TaskOutcome
	seen     map[string]struct{}
	report   *RunReport
}

// NewAggregator creates an empty aggregator for the run identified by runID.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{
		runID:     runID,
		startedAt: time.Now(),
		now:       time.Now,
		seen:      make(map[string]struct{}),
	}
}

// Record appends outcome. A second outcome for the same (dataset type, problem type, task)
// or any outcome after Finalize is an AggregationError.
func (a *Aggregator) Record(outcome TaskOutcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.report != nil {
		return &AggregationError{Cell: outcome.Cell, TaskID: outcome.TaskID, Reason: "run report already finalized"}
	}
	key := outcome.Key()
	if _, exists := a.seen[key]; exists {
		return &AggregationError{Cell: outcome.Cell, TaskID: outcome.TaskID, Reason: "outcome already recorded"}
	}
	a.seen[key] = struct{}{}
	a.outcomes = append(a.outcomes, outcome)
	return nil
}

// Finalize builds the report. Later calls return the same report.
func (a *Aggregator) Finalize() RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.report == nil {
		report := RunReport{
			RunID:         a.runID,
			StartedAt:     a.startedAt,
			FinishedAt:    a.now(),
			Outcomes:      slices.Clone(a.outcomes),
			ByProblemType: make(map[config.ProblemType]Counts),
			ByDatasetType: make(map[config.DatasetType]Counts),
			ByCell:        []CellCounts{},
		}
		if report.Outcomes == nil {
			report.Outcomes = []TaskOutcome{}
		}

		cellIndex := make(map[matrix.Cell]int)
		for _, outcome := range report.Outcomes {
			report.Totals.add(outcome.Status)

			byProblem := report.ByProblemType[outcome.Cell.ProblemType]
			byProblem.add(outcome.Status)
			report.ByProblemType[outcome.Cell.ProblemType] = byProblem

			byDataset := report.ByDatasetType[outcome.Cell.DatasetType]
			byDataset.add(outcome.Status)
			report.ByDatasetType[outcome.Cell.DatasetType] = byDataset

			idx, ok := cellIndex[outcome.Cell]
			if !ok {
				idx = len(report.ByCell)
				cellIndex[outcome.Cell] = idx
				report.ByCell = append(report.ByCell, CellCounts{Cell: outcome.Cell})
			}
			report.ByCell[idx].Counts.add(outcome.Status)
		}
		a.report = &report
	}
	return *a.report
}
