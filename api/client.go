// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package api implements the client side of the LwLL evaluation API: task discovery,
// session creation, the checkpoint exchange and prediction submission.
package api

import (
	"context"
	"slices"
	"strconv"

	"github.com/petmal/lwlltrial/config"
)

// Client talks to the evaluation API on behalf of the harness.
// Implementations may be shared by sequential task runs; a Session must only be
// used by the run that started it.
type Client interface {
	// ListTasks returns the tasks of the given problem type that can be run with the given dataset type.
	ListTasks(ctx context.Context, problemType config.ProblemType, datasetType config.DatasetType) ([]TaskDescriptor, error)
	// StartSession opens a new evaluation session for task.
	StartSession(ctx context.Context, task TaskDescriptor, datasetType config.DatasetType, sessionName string) (*Session, error)
	// Advance performs one checkpoint exchange and reports what the caller should do next.
	Advance(ctx context.Context, session *Session, request LabelRequest) (CheckpointState, error)
	// Submit sends predictions for the current checkpoint.
	Submit(ctx context.Context, session *Session, predictions Predictions) (SubmissionResult, error)
	// Close releases resources held by the client.
	Close(ctx context.Context) error
}

// TaskDescriptor identifies a task offered by the API.
type TaskDescriptor struct {
	// ID is the opaque task identifier.
	ID string
	// ProblemType is the problem type of the task.
	ProblemType config.ProblemType
	// DatasetTypes lists the dataset partitions the task can be run with.
	DatasetTypes []config.DatasetType
	// BaseDataset is the dataset used in the base stage.
	BaseDataset string
	// AdaptationDataset is the dataset used in the adaptation stage.
	AdaptationDataset string
}

// SupportsDatasetType reports whether the task can be run with datasetType.
func (t TaskDescriptor) SupportsDatasetType(datasetType config.DatasetType) bool {
	return slices.Contains(t.DatasetTypes, datasetType)
}

// Session is the handle of an open evaluation session.
// It carries the per-session checkpoint bookkeeping of the client that created it.
type Session struct {
	// Token authenticates session scoped calls.
	Token string
	// Name is the session name given at creation.
	Name string
	// Task is the task the session evaluates.
	Task TaskDescriptor
	// DatasetType is the dataset partition of the session.
	DatasetType config.DatasetType

	stage          string
	seedRoundsLeft int
	lastStatus     string
}

// Stage returns the last observed pair stage ("base" or "adaptation"), or an empty string
// before the first checkpoint.
func (s *Session) Stage() string {
	return s.stage
}

// Label is a single label returned by the API.
type Label struct {
	ID    string `json:"id"`
	Class string `json:"class,omitempty"`
	BBox  string `json:"bbox,omitempty"`
	Text  string `json:"text,omitempty"`
}

// LabelRequest lists the examples whose labels the model wants next.
type LabelRequest struct {
	ExampleIDs []string
}

// IsEmpty reports whether no label is requested.
func (r LabelRequest) IsEmpty() bool {
	return len(r.ExampleIDs) == 0
}

// DatasetInfo describes the dataset of the current stage.
type DatasetInfo struct {
	Name            string   `json:"name"`
	UID             string   `json:"uid,omitempty"`
	ProblemType     string   `json:"dataset_type"`
	Classes         []string `json:"classes,omitempty"`
	NumberOfClasses int      `json:"number_of_classes,omitempty"`
}

// CheckpointAction tells the task runner how to proceed after a checkpoint exchange.
type CheckpointAction int

const (
	// ActionContinue means labels were delivered and the session keeps advancing.
	ActionContinue CheckpointAction = iota
	// ActionSubmit means predictions are due.
	ActionSubmit
	// ActionComplete means the session is finished.
	ActionComplete
)

var checkpointActionNames = [...]string{
	ActionContinue: "continue",
	ActionSubmit:   "submit",
	ActionComplete: "complete",
}

func (a CheckpointAction) String() string {
	if a < 0 || int(a) >= len(checkpointActionNames) {
		return "CheckpointAction(" + strconv.Itoa(int(a)) + ")"
	}
	return checkpointActionNames[a]
}

// IsKnown reports whether a is one of the defined actions.
func (a CheckpointAction) IsKnown() bool {
	return a >= ActionContinue && a <= ActionComplete
}

// CheckpointState is the outcome of one checkpoint exchange.
type CheckpointState struct {
	// Action tells the caller what to do next.
	Action CheckpointAction
	// Stage is the pair stage the session was in.
	Stage string
	// Dataset describes the dataset of the stage.
	Dataset DatasetInfo
	// BudgetUsed is the number of labels consumed so far.
	BudgetUsed int
	// BudgetLeft is the number of labels left until the next checkpoint.
	BudgetLeft int
	// SeedRound is set when Labels are seed labels.
	SeedRound bool
	// Labels are the labels delivered by this exchange, if any.
	Labels []Label
}

// SubmissionResult is the API acknowledgement of a prediction submission.
type SubmissionResult struct {
	// Accepted is set when the API took the predictions.
	Accepted bool
	// SessionComplete is set when the submission finished the session.
	SessionComplete bool
	// BudgetUsed is the number of labels consumed so far.
	BudgetUsed int
	// Stage is the pair stage after the submission.
	Stage string
}
