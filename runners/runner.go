// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package runners drives evaluation sessions: the per-task state machine, the loop over
// the task matrix and the aggregation of task outcomes into a run report.
package runners

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/petmal/lwlltrial/matrix"
)

const outcomeIDPrefix = "task"

var validIDCharMatcher = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

var (
	// ErrCheckpointLimit is returned when a session keeps advancing past the configured limit.
	ErrCheckpointLimit = errors.New("checkpoint limit exceeded")
	// ErrUnknownAction is returned when a checkpoint exchange yields an unknown action.
	ErrUnknownAction = errors.New("unknown checkpoint action")
	// ErrSubmissionRejected is returned when the API does not accept predictions.
	ErrSubmissionRejected = errors.New("predictions were not accepted")
	// ErrTaskPanic is returned when a task run panics.
	ErrTaskPanic = errors.New("task run panicked")
	// ErrAggregation is matched by every AggregationError.
	ErrAggregation = errors.New("aggregation error")
)

// Runner executes the task matrix of a run.
type Runner interface {
	// Run executes every selected task and returns the final report.
	// An error means the run was aborted; the report then holds what was recorded so far.
	Run(ctx context.Context) (RunReport, error)
	// Close releases resources when the runner is no longer needed.
	Close(ctx context.Context)
}

// Status is the final classification of a task.
type Status int

const (
	// StatusSuccess indicates that the session ran to completion.
	StatusSuccess Status = iota
	// StatusFailed indicates that the task could not be completed.
	StatusFailed
	// StatusSkipped indicates that the task was not run.
	StatusSkipped
)

var statusNames = [...]string{
	StatusSuccess: "success",
	StatusFailed:    "failed",
	StatusSkipped:   "skipped",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
	return statusNames[s]
}

// MarshalText encodes s by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a state of the task state machine.
type State int

const (
	StateDiscovered State = iota
	StateSessionStarted
	StateAdvancing
	StateSubmitted
	StateCompleted
	StateFailed
	StateSkipped
)

var stateNames = [...]string{
	StateDiscovered:     "Discovered",
	StateSessionStarted: "SessionStarted",
	StateAdvancing:      "Advancing",
	StateSubmitted:      "Submitted",
	StateCompleted:      "Completed",
	StateFailed:         "Failed",
	StateSkipped:        "Skipped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// MarshalText encodes s by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSkipped
}

// TaskError is the failure of a single task. It never aborts the run.
type TaskError struct {
	// State is the state the task was in when it failed.
	State State
	// Cause is the underlying error.
	Cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task failed in state %s: %v", e.State, e.Cause)
}

func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// AggregationError reports an outcome that cannot be recorded. It aborts the run.
type AggregationError struct {
	Cell   matrix.Cell
	TaskID string
	Reason string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%v: %s: task %q: %s", ErrAggregation, e.Cell, e.TaskID, e.Reason)
}

func (e *AggregationError) Unwrap() error {
	return ErrAggregation
}

// TaskOutcome is the immutable record of one task run (or of a cell without runnable tasks).
type TaskOutcome struct {
	// Cell is the matrix cell the task was run for.
	Cell matrix.Cell `json:"cell"`
	// TaskID is the task identifier. It is empty for cell level outcomes.
	TaskID string `json:"task_id"`
	// Status is the final classification.
	Status Status `json:"status"`
	// State is the state reached; for failures the state the task failed in.
	State State `json:"state"`
	// Reason explains skips and failures.
	Reason string `json:"reason,omitempty"`
	// Err is the failure cause.
	Err error `json:"-"`
	// SessionName is the name of the session, if one was started.
	SessionName string `json:"session_name,omitempty"`
	// Checkpoints is the number of checkpoint exchanges.
	Checkpoints int `json:"checkpoints"`
	// Submissions is the number of accepted prediction submissions.
	Submissions int `json:"submissions"`
	// Duration is the wall clock time of the task run.
	Duration time.Duration `json:"duration"`
}

// Key identifies the outcome within a run.
func (o TaskOutcome) Key() string {
	return o.Cell.String() + "/" + o.TaskID
}

// GetID generates a unique, sanitized identifier for the outcome.
// The ID must be non-empty, must not contain whitespace, must begin with a letter,
// and must only include letters, digits, dashes (-), and underscores (_).
func (o TaskOutcome) GetID() (sanitizedID string) {
	uniqueID := fmt.Sprintf("%s-%s-%s-%s", outcomeIDPrefix, o.Cell.DatasetType, o.Cell.ProblemType, o.TaskID)
	sanitizedID = strings.ReplaceAll(uniqueID, " ", "-")
	sanitizedID = validIDCharMatcher.ReplaceAllString(sanitizedID, "_")
	return sanitizedID
}
