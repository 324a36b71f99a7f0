// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package apitest provides a scripted api.Client for tests of code driving the API.
package apitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/config"
)

// AdvanceStep scripts the outcome of one Advance call.
type AdvanceStep struct {
	Action api.CheckpointAction
	Labels []api.Label
	Err    error
	// Block waits for the call context to end and returns its error.
	Block bool
	// Panic makes the call panic with the given value.
	Panic any
}

// SubmitStep scripts the outcome of one Submit call.
type SubmitStep struct {
	Result api.SubmissionResult
	Err    error
}

// SessionScript scripts the session of one task.
// Advance steps are consumed in order; once they run out, Advance reports ActionComplete.
// Submit steps are consumed in order; once they run out, Submit accepts the predictions.
type SessionScript struct {
	StartErr error
	Advance  []AdvanceStep
	Submit   []SubmitStep
}

// ScriptedClient is an api.Client replaying scripted responses.
type ScriptedClient struct {
	// Tasks are returned by ListTasks per problem type.
	Tasks map[config.ProblemType][]api.TaskDescriptor
	// ListErrs make ListTasks fail per problem type.
	ListErrs map[config.ProblemType]error
	// Sessions script the sessions per task ID. Tasks without script complete at once.
	Sessions map[string]*SessionScript

	mu          sync.Mutex
	calls       []string
	predictions []api.Predictions
	closed      bool
}

// NewScriptedClient creates a client offering tasks. Every task is listed under its own problem type.
func NewScriptedClient(tasks ...api.TaskDescriptor) *ScriptedClient {
	c := &ScriptedClient{
		Tasks:    make(map[config.ProblemType][]api.TaskDescriptor),
		ListErrs: make(map[config.ProblemType]error),
		Sessions: make(map[string]*SessionScript),
	}
	for _, task := range tasks {
		c.Tasks[task.ProblemType] = append(c.Tasks[task.ProblemType], task)
	}
	return c
}

// Task builds a descriptor runnable with every dataset type.
func Task(id string, problemType config.ProblemType) api.TaskDescriptor {
	return api.TaskDescriptor{
		ID:                id,
		ProblemType:       problemType,
		DatasetTypes:      config.ConcreteDatasetTypes(),
		BaseDataset:       id + "-base",
		AdaptationDataset: id + "-adaptation",
	}
}

// Script registers the session script of a task and returns the client.
func (c *ScriptedClient) Script(taskID string, script SessionScript) *ScriptedClient {
	c.Sessions[taskID] = &script
	return c
}

// Calls returns the calls made so far as "Method taskID" (ListTasks records the cell instead).
func (c *ScriptedClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Predictions returns every submitted prediction table.
func (c *ScriptedClient) Predictions() []api.Predictions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.Predictions(nil), c.predictions...)
}

// Closed reports whether Close was called.
func (c *ScriptedClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *ScriptedClient) record(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *ScriptedClient) ListTasks(ctx context.Context, problemType config.ProblemType, datasetType config.DatasetType) ([]api.TaskDescriptor, error) {
	c.record("ListTasks %s/%s", datasetType, problemType)
	if err := c.ListErrs[problemType]; err != nil {
		return nil, err
	}
	return append([]api.TaskDescriptor(nil), c.Tasks[problemType]...), nil
}

func (c *ScriptedClient) StartSession(ctx context.Context, task api.TaskDescriptor, datasetType config.DatasetType, sessionName string) (*api.Session, error) {
	c.record("StartSession %s", task.ID)
	if script, ok := c.Sessions[task.ID]; ok && script.StartErr != nil {
		return nil, script.StartErr
	}
	return &api.Session{
		Token:       "token-" + task.ID,
		Name:        sessionName,
		Task:        task,
		DatasetType: datasetType,
	}, nil
}

func (c *ScriptedClient) Advance(ctx context.Context, session *api.Session, request api.LabelRequest) (api.CheckpointState, error) {
	c.record("Advance %s", session.Task.ID)
	script, ok := c.Sessions[session.Task.ID]
	if !ok || len(script.Advance) == 0 {
		return api.CheckpointState{Action: api.ActionComplete}, nil
	}

	c.mu.Lock()
	step := script.Advance[0]
	script.Advance = script.Advance[1:]
	c.mu.Unlock()

	if step.Panic != nil {
		panic(step.Panic)
	}
	if step.Block {
		<-ctx.Done()
		return api.CheckpointState{}, ctx.Err()
	}
	if step.Err != nil {
		return api.CheckpointState{}, step.Err
	}
	return api.CheckpointState{
		Action:  step.Action,
		Stage:   "base",
		Dataset: api.DatasetInfo{Name: session.Task.BaseDataset, ProblemType: session.Task.ProblemType.String(), Classes: []string{"0", "1"}},
		Labels:  step.Labels,
	}, nil
}

func (c *ScriptedClient) Submit(ctx context.Context, session *api.Session, predictions api.Predictions) (api.SubmissionResult, error) {
	c.record("Submit %s", session.Task.ID)
	c.mu.Lock()
	c.predictions = append(c.predictions, predictions)
	c.mu.Unlock()

	script, ok := c.Sessions[session.Task.ID]
	if !ok || len(script.Submit) == 0 {
		return api.SubmissionResult{Accepted: true, Stage: "base"}, nil
	}

	c.mu.Lock()
	step := script.Submit[0]
	script.Submit = script.Submit[1:]
	c.mu.Unlock()
	return step.Result, step.Err
}

func (c *ScriptedClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
