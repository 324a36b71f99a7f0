// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/petmal/lwlltrial/matrix"
	"github.com/petmal/lwlltrial/runners"
	"golang.org/x/exp/constraints"
)

const (
	// Success is the display name of runners.StatusSuccess.
	Success = "Success"
	// Failed is the display name of runners.StatusFailed.
	Failed = "Failed"
	// Skipped is the display name of runners.StatusSkipped.
	Skipped = "Skipped"
)

const noTask = "-"

var timestamp = func(t time.Time) string {
	return t.Format(time.RFC1123Z)
}

// ToStatus returns the display name of a task status.
func ToStatus(status runners.Status) string {
	switch status {
	case runners.StatusSuccess:
		return Success
	case runners.StatusFailed:
		return Failed
	case runners.StatusSkipped:
		return Skipped
	}
	return fmt.Sprintf("Unknown (%d)", int(status))
}

// TaskName returns the task of an outcome, or a dash for cell level outcomes.
func TaskName(outcome runners.TaskOutcome) string {
	if outcome.TaskID == "" {
		return noTask
	}
	return outcome.TaskID
}

// Rate returns part as a fraction of total, or zero when total is zero.
func Rate[T constraints.Integer | constraints.Float](part T, total T) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// Percent converts a fraction to a percentage.
func Percent(rate float64) float64 {
	return rate * 100
}

// SuccessRate returns the fraction of attempted tasks that succeeded. Skipped tasks are not attempted.
func SuccessRate(counts runners.Counts) float64 {
	return Rate(counts.Success, counts.Success+counts.Failed)
}

// CellDurations sums the task durations of every cell.
func CellDurations(report runners.RunReport) map[matrix.Cell]time.Duration {
	durations := make(map[matrix.Cell]time.Duration, len(report.ByCell))
	for _, outcome := range report.Outcomes {
		durations[outcome.Cell] += outcome.Duration
	}
	return durations
}

// TotalDuration sums the durations of the outcomes with one of the given statuses.
func TotalDuration(outcomes []runners.TaskOutcome, include ...runners.Status) (total time.Duration) {
	for _, outcome := range outcomes {
		if slices.Contains(include, outcome.Status) {
			total += outcome.Duration
		}
	}
	return
}

// ForEachOrdered calls fn for each entry of m in ascending key order. It stops at the first error.
func ForEachOrdered[K cmp.Ordered, V any](m map[K]V, fn func(key K, value V) error) error {
	for _, key := range SortedKeys(m) {
		if err := fn(key, m[key]); err != nil {
			return err
		}
	}
	return nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// RoundToMS rounds a duration to the nearest millisecond.
func RoundToMS(value time.Duration) time.Duration {
	return value.Round(time.Millisecond)
}

// Timestamp returns the current time formatted for reports.
func Timestamp() string {
	return timestamp(time.Now())
}
