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

	"github.com/oklog/ulid/v2"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/matrix"
	"github.com/petmal/lwlltrial/model"
	"github.com/petmal/lwlltrial/pkg/logging"
	"github.com/petmal/lwlltrial/version"
)

const noEligibleTasks = "no eligible tasks"

// NewDefaultRunner creates a Runner that executes the cells of cfg one after another.
// Within a cell, tasks run sequentially in the order the API lists them.
func NewDefaultRunner(cfg config.RunConfig, client api.Client, newModel model.Factory, logger logging.Logger) Runner {
	return &defaultRunner{
		cfg:      cfg,
		client:   client,
		newModel: newModel,
		logger:   logger,
		newRunID: func() string { return ulid.Make().String() },
	}
}

type defaultRunner struct {
	cfg      config.RunConfig
	client   api.Client
	newModel model.Factory
	logger   logging.Logger
	newRunID func() string
}

func (r *defaultRunner) Run(ctx context.Context) (RunReport, error) {
	cells, err := matrix.Expand(r.cfg.DatasetType, r.cfg.ProblemType)
	if err != nil {
		return RunReport{}, err
	}

	runID := r.newRunID()
	aggregator := NewAggregator(runID)
	taskRunner := NewTaskRunner(r.client, r.newModel, r.cfg, r.logger)

	r.logger.Message(ctx, logging.LevelInfo, "starting run %s over %d cell%s...", pluralize(runID, countable(len(cells)))...)
	start := time.Now()
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return aggregator.Finalize(), err
		}
		if err := r.runCell(ctx, cell, runID, taskRunner, aggregator); err != nil {
			return aggregator.Finalize(), err
		}
	}

	report := aggregator.Finalize()
	r.logger.Message(ctx, logging.LevelInfo, "tasks succeeded: %d, failed: %d, skipped: %d",
		report.Totals.Success, report.Totals.Failed, report.Totals.Skipped)
	r.logger.Message(ctx, logging.LevelInfo, "finished complete workflow run in %s.", time.Since(start))
	return report, nil
}

func (r *defaultRunner) runCell(ctx context.Context, cell matrix.Cell, runID string, taskRunner *TaskRunner, aggregator *Aggregator) error {
	logger := r.logger.WithContext(fmt.Sprintf("%s: %s: ", cell.DatasetType, cell.ProblemType))
	logger.Message(ctx, logging.LevelInfo, "listing tasks...")
	cellStart := time.Now()

	tasks, err := r.client.ListTasks(ctx, cell.ProblemType, cell.DatasetType)
	if err != nil {
		logger.Error(ctx, logging.LevelError, err, "failed to list tasks")
		return aggregator.Record(TaskOutcome{
			Cell:   cell,
			Status: StatusFailed,
			State:  StateDiscovered,
			Reason: err.Error(),
			Err:    &TaskError{State: StateDiscovered, Cause: err},
		})
	}
	if len(tasks) == 0 {
		logger.Message(ctx, logging.LevelInfo, "%s", noEligibleTasks)
		return aggregator.Record(TaskOutcome{
			Cell:   cell,
			Status: StatusSkipped,
			State:  StateSkipped,
			Reason: noEligibleTasks,
		})
	}

	logger.Message(ctx, logging.LevelInfo, "starting %d task%s...", pluralize(countable(len(tasks)))...)
	for _, task := range tasks {
		outcome := taskRunner.Run(ctx, cell, task, r.sessionName(runID, cell, task))
		if err := aggregator.Record(outcome); err != nil {
			logger.Error(ctx, logging.LevelError, err, "failed to record outcome of task %s", task.ID)
			return err
		}
	}
	logger.Message(ctx, logging.LevelInfo, "all tasks have finished in %s.", time.Since(cellStart))
	return nil
}

func (r *defaultRunner) sessionName(runID string, cell matrix.Cell, task api.TaskDescriptor) string {
	prefix := r.cfg.Settings.SessionNamePrefix
	if !config.IsNotBlank(prefix) {
		prefix = version.Name
	}
	return fmt.Sprintf("%s - run %s - %s - %s", prefix, runID, cell.DatasetType, task.ID)
}

func (r *defaultRunner) Close(ctx context.Context) {
	if err := r.client.Close(ctx); err != nil {
		r.logger.Error(ctx, logging.LevelWarn, err, "failed to close API client")
	}
}

type countable int

func pluralize(tokens ...any) []interface{} {
	pluralized := make([]interface{}, 0, 2*len(tokens))
	for _, token := range tokens {
		pluralized = append(pluralized, token)
		if v, ok := any(token).(countable); ok {
			switch v {
			case 1:
				pluralized = append(pluralized, "")
			default:
				pluralized = append(pluralized, "s")
			}
		}
	}

	return pluralized
}
