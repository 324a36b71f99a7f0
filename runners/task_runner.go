// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package runners

import (
	"context"
	"fmt"
	"time"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/matrix"
	"github.com/petmal/lwlltrial/model"
	"github.com/petmal/lwlltrial/pkg/logging"
)

// TaskRunner drives a single task through its session:
//
//	Discovered -> SessionStarted -> Advancing -> Submitted -> Completed
//	                                    ^            |
//	                                    +------------+
//
// Any error moves the task to Failed. Skipped is only reachable from Discovered.
type TaskRunner struct {
	client   api.Client
	newModel model.Factory
	cfg      config.RunConfig
	logger   logging.Logger
}

// NewTaskRunner creates a TaskRunner using client for API calls and newModel to answer checkpoints.
func NewTaskRunner(client api.Client, newModel model.Factory, cfg config.RunConfig, logger logging.Logger) *TaskRunner {
	return &TaskRunner{
		client:   client,
		newModel: newModel,
		cfg:      cfg,
		logger:   logger,
	}
}

type taskRun struct {
	outcome TaskOutcome
	state   State
	logger  logging.Logger
}

func (t *taskRun) transition(ctx context.Context, next State) {
	t.logger.Message(ctx, logging.LevelDebug, "%s -> %s", t.state, next)
	t.state = next
}

func (t *taskRun) fail(ctx context.Context, err error) {
	taskErr := &TaskError{State: t.state, Cause: err}
	t.logger.Error(ctx, logging.LevelError, taskErr, "task failed")
	t.outcome.Status = StatusFailed
	t.outcome.State = t.state
	t.outcome.Err = taskErr
	t.outcome.Reason = err.Error()
	t.transition(ctx, StateFailed)
}

func (t *taskRun) skip(ctx context.Context, reason string) {
	t.logger.Message(ctx, logging.LevelInfo, "skipping task: %s", reason)
	t.outcome.Status = StatusSkipped
	t.outcome.State = StateSkipped
	t.outcome.Reason = reason
	t.transition(ctx, StateSkipped)
}

func (t *taskRun) complete(ctx context.Context) {
	t.outcome.Status = StatusSuccess
	t.outcome.State = StateCompleted
	t.transition(ctx, StateCompleted)
}

// Run executes task for cell and returns its outcome. It never panics and never returns
// a partial outcome: every run ends with status success, failed or skipped.
func (r *TaskRunner) Run(ctx context.Context, cell matrix.Cell, task api.TaskDescriptor, sessionName string) TaskOutcome {
	run := &taskRun{
		outcome: TaskOutcome{Cell: cell, TaskID: task.ID},
		state:   StateDiscovered,
		logger:  r.logger.WithContext(fmt.Sprintf("%s: %s: %s: ", cell.DatasetType, cell.ProblemType, task.ID)),
	}

	start := time.Now()
	func() {
		defer func() {
			if p := recover(); p != nil {
				run.fail(ctx, fmt.Errorf("%w: %v", ErrTaskPanic, p))
			}
		}()
		r.run(ctx, run, cell, task, sessionName)
	}()
	run.outcome.Duration = time.Since(start)

	run.logger.Message(ctx, logging.LevelInfo, "task has finished with status %s in %s.", run.outcome.Status, run.outcome.Duration)
	return run.outcome
}

func (r *TaskRunner) run(ctx context.Context, run *taskRun, cell matrix.Cell, task api.TaskDescriptor, sessionName string) {
	if r.cfg.HasTaskFilter() && task.ID != r.cfg.TaskID {
		run.skip(ctx, "filtered by task id")
		return
	}
	if !task.SupportsDatasetType(cell.DatasetType) {
		run.skip(ctx, fmt.Sprintf("dataset type %s is not available for this task", cell.DatasetType))
		return
	}

	m, err := r.newModel(task, cell.DatasetType)
	if err != nil {
		run.fail(ctx, err)
		return
	}

	run.logger.Message(ctx, logging.LevelInfo, "starting task...")
	session, err := r.client.StartSession(ctx, task, cell.DatasetType, sessionName)
	if err != nil {
		run.fail(ctx, err)
		return
	}
	run.outcome.SessionName = session.Name
	run.transition(ctx, StateSessionStarted)
	run.transition(ctx, StateAdvancing)

	maxCheckpoints := r.cfg.Settings.MaxCheckpoints
	if maxCheckpoints <= 0 {
		maxCheckpoints = config.DefaultMaxCheckpoints
	}

	for {
		if run.outcome.Checkpoints >= maxCheckpoints {
			run.fail(ctx, fmt.Errorf("%w: %d", ErrCheckpointLimit, maxCheckpoints))
			return
		}

		checkpoint, err := r.client.Advance(ctx, session, m.LabelRequest())
		run.outcome.Checkpoints++
		if err != nil {
			run.fail(ctx, err)
			return
		}
		if checkpoint.Stage != "" {
			m.SetStage(checkpoint.Stage, checkpoint.Dataset)
		}

		switch checkpoint.Action {
		case api.ActionContinue:
			m.Observe(checkpoint.Labels)
		case api.ActionComplete:
			run.complete(ctx)
			return
		case api.ActionSubmit:
			m.Observe(checkpoint.Labels)
			if completed := r.submit(ctx, run, session, m); completed || run.state.IsTerminal() {
				return
			}
		default:
			run.fail(ctx, fmt.Errorf("%w: %w: %s", api.ErrMalformedResponse, ErrUnknownAction, checkpoint.Action))
			return
		}
	}
}

// submit sends the model's predictions. It reports whether the submission finished the session.
func (r *TaskRunner) submit(ctx context.Context, run *taskRun, session *api.Session, m model.Model) (completed bool) {
	predictions, err := m.Predict()
	if err != nil {
		run.fail(ctx, err)
		return
	}

	result, err := r.client.Submit(ctx, session, predictions)
	if err != nil {
		run.fail(ctx, err)
		return
	}
	if !result.Accepted {
		run.fail(ctx, ErrSubmissionRejected)
		return
	}
	run.outcome.Submissions++
	run.transition(ctx, StateSubmitted)

	if result.SessionComplete {
		run.complete(ctx)
		return true
	}
	run.transition(ctx, StateAdvancing)
	return false
}
