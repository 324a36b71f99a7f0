// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package runners

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/api/apitest"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/matrix"
	"github.com/petmal/lwlltrial/pkg/testutils"
)

func newTestRunner(t *testing.T, cfg config.RunConfig, client api.Client) *defaultRunner {
	r := NewDefaultRunner(cfg, client, stubFactory(nil), testutils.NewTestLogger(t)).(*defaultRunner)
	r.newRunID = func() string { return "01TESTRUN" }
	return r
}

type outcomeSummary struct {
	Key    string
	Status Status
}

func summarize(outcomes []TaskOutcome) []outcomeSummary {
	summaries := make([]outcomeSummary, 0, len(outcomes))
	for _, o := range outcomes {
		summaries = append(summaries, outcomeSummary{Key: o.Key(), Status: o.Status})
	}
	return summaries
}

func TestDefaultRunnerRunMatrix(t *testing.T) {
	client := apitest.NewScriptedClient(
		apitest.Task("img-1", config.ImageClassification),
		apitest.Task("img-2", config.ImageClassification),
		apitest.Task("od-1", config.ObjectDetection),
	)
	client.Script("img-2", apitest.SessionScript{Advance: []apitest.AdvanceStep{{Err: api.ErrTimeout}, {Err: api.ErrTimeout}}})
	client.ListErrs[config.MachineTranslation] = api.ErrRequestFailed

	cfg := testRunConfig()
	cfg.DatasetType = config.DatasetAll
	cfg.ProblemType = config.AllProblemTypes

	report, err := newTestRunner(t, cfg, client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "01TESTRUN", report.RunID)
	assert.Equal(t, []outcomeSummary{
		{"sample/image_classification/img-1", StatusSuccess},
		{"sample/image_classification/img-2", StatusFailed},
		{"sample/object_detection/od-1", StatusSuccess},
		{"sample/video_classification/", StatusSkipped},
		{"sample/machine_translation/", StatusFailed},
		{"full/image_classification/img-1", StatusSuccess},
		{"full/image_classification/img-2", StatusFailed},
		{"full/object_detection/od-1", StatusSuccess},
		{"full/video_classification/", StatusSkipped},
		{"full/machine_translation/", StatusFailed},
	}, summarize(report.Outcomes))

	assert.Equal(t, Counts{Success: 4, Failed: 4, Skipped: 2}, report.Totals)
	assert.Equal(t, Counts{Success: 2, Failed: 2}, report.ByProblemType[config.ImageClassification])
	assert.Equal(t, Counts{Success: 2, Failed: 2, Skipped: 1}, report.ByDatasetType[config.DatasetFull])
	assert.Len(t, report.ByCell, 8)
	assert.False(t, report.Clean())

	skipped := report.Outcomes[3]
	assert.Equal(t, "no eligible tasks", skipped.Reason)
	assert.Empty(t, skipped.TaskID)

	failedList := report.Outcomes[4]
	assert.Equal(t, StateDiscovered, failedList.State)
	require.ErrorIs(t, failedList.Err, api.ErrRequestFailed)
}

func TestDefaultRunnerSessionNames(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{
			name: "default prefix",
			want: "LwLLTrial - run 01TESTRUN - full - img-1",
		},
		{
			name:   "custom prefix",
			prefix: "team-a",
			want:   "team-a - run 01TESTRUN - full - img-1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := apitest.NewScriptedClient(apitest.Task("img-1", config.ImageClassification))
			cfg := testRunConfig()
			cfg.DatasetType = config.DatasetFull
			cfg.Settings.SessionNamePrefix = tt.prefix

			report, err := newTestRunner(t, cfg, client).Run(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Outcomes, 1)
			assert.Equal(t, tt.want, report.Outcomes[0].SessionName)
			assert.True(t, report.Clean())
		})
	}
}

func TestDefaultRunnerTaskFilter(t *testing.T) {
	client := apitest.NewScriptedClient(
		apitest.Task("img-1", config.ImageClassification),
		apitest.Task("img-2", config.ImageClassification),
	)
	cfg := testRunConfig()
	cfg.TaskID = "img-2"

	report, err := newTestRunner(t, cfg, client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []outcomeSummary{
		{"sample/image_classification/img-1", StatusSkipped},
		{"sample/image_classification/img-2", StatusSuccess},
	}, summarize(report.Outcomes))
	assert.Equal(t, []string{
		"ListTasks sample/image_classification",
		"StartSession img-2",
		"Advance img-2",
	}, client.Calls())
	assert.True(t, report.Clean())
}

func TestDefaultRunnerRealRunID(t *testing.T) {
	client := apitest.NewScriptedClient()
	runner := NewDefaultRunner(testRunConfig(), client, stubFactory(nil), testutils.NewTestLogger(t))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	_, err = ulid.Parse(report.RunID)
	require.NoError(t, err)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestDefaultRunnerAborts(t *testing.T) {
	t.Run("unsupported selection", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.ProblemType = config.ProblemType(42)

		_, err := newTestRunner(t, cfg, apitest.NewScriptedClient()).Run(context.Background())
		var configErr *config.ConfigurationError
		require.ErrorAs(t, err, &configErr)
	})

	t.Run("duplicate outcome", func(t *testing.T) {
		client := apitest.NewScriptedClient(
			apitest.Task("img-1", config.ImageClassification),
			apitest.Task("img-1", config.ImageClassification),
		)

		report, err := newTestRunner(t, testRunConfig(), client).Run(context.Background())
		require.ErrorIs(t, err, ErrAggregation)
		var aggErr *AggregationError
		require.ErrorAs(t, err, &aggErr)
		assert.Equal(t, "img-1", aggErr.TaskID)
		assert.Len(t, report.Outcomes, 1)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := apitest.NewScriptedClient(apitest.Task("img-1", config.ImageClassification))

		report, err := newTestRunner(t, testRunConfig(), client).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, report.Outcomes)
		assert.Empty(t, client.Calls())
	})
}

func TestDefaultRunnerClose(t *testing.T) {
	client := apitest.NewScriptedClient()
	runner := newTestRunner(t, testRunConfig(), client)

	runner.Close(context.Background())
	assert.True(t, client.Closed())
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, []any{"run", 1, countable(1), ""}, pluralize("run", 1, countable(1)))
	assert.Equal(t, []any{countable(0), "s", countable(3), "s"}, pluralize(countable(0), countable(3)))
}

func TestTaskOutcomeIdentity(t *testing.T) {
	outcome := TaskOutcome{
		Cell:   matrix.Cell{DatasetType: config.DatasetFull, ProblemType: config.MachineTranslation},
		TaskID: "task id/7",
	}
	assert.Equal(t, "full/machine_translation/task id/7", outcome.Key())
	assert.Equal(t, "task-full-machine_translation-task-id_7", outcome.GetID())
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("boom")
	taskErr := &TaskError{State: StateSubmitted, Cause: cause}
	assert.Equal(t, "task failed in state Submitted: boom", taskErr.Error())
	require.ErrorIs(t, taskErr, cause)

	aggErr := &AggregationError{Cell: sampleImages, TaskID: "t", Reason: "outcome already recorded"}
	assert.Equal(t, `aggregation error: sample/image_classification: task "t": outcome already recorded`, aggErr.Error())
	require.ErrorIs(t, aggErr, ErrAggregation)
}

func TestStatesAndStatuses(t *testing.T) {
	assert.Equal(t, "SessionStarted", StateSessionStarted.String())
	assert.Equal(t, "State(12)", State(12).String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "Status(-1)", Status(-1).String())

	for _, s := range []State{StateCompleted, StateFailed, StateSkipped} {
		assert.True(t, s.IsTerminal(), s.String())
	}
	for _, s := range []State{StateDiscovered, StateSessionStarted, StateAdvancing, StateSubmitted} {
		assert.False(t, s.IsTerminal(), s.String())
	}
}

func TestDefaultRunnerSingleTaskScenarios(t *testing.T) {
	tests := []struct {
		name       string
		script     *apitest.SessionScript
		wantStatus Status
		wantState  State
		wantErr    error
		wantClean  bool
	}{
		{
			name:       "every call succeeds",
			script:     &apitest.SessionScript{Advance: []apitest.AdvanceStep{{Action: api.ActionSubmit}}},
			wantStatus: StatusSuccess,
			wantState:  StateCompleted,
			wantClean:  true,
		},
		{
			name:       "first advance times out",
			script:     &apitest.SessionScript{Advance: []apitest.AdvanceStep{{Err: api.ErrTimeout}}},
			wantStatus: StatusFailed,
			wantState:  StateAdvancing,
			wantErr:    api.ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := apitest.NewScriptedClient(apitest.Task("od-1", config.ObjectDetection)).Script("od-1", *tt.script)
			cfg := testRunConfig()
			cfg.ProblemType = config.ObjectDetection
			cfg.Environment = config.EnvDev

			report, err := newTestRunner(t, cfg, client).Run(context.Background())
			require.NoError(t, err)

			require.Len(t, report.Outcomes, 1)
			outcome := report.Outcomes[0]
			assert.Equal(t, "sample/object_detection/od-1", outcome.Key())
			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.wantState, outcome.State)
			assert.Equal(t, tt.wantClean, report.Clean())
			if tt.wantErr != nil {
				require.ErrorIs(t, outcome.Err, tt.wantErr)
				assert.Contains(t, outcome.Reason, "request timed out")
			} else {
				assert.NoError(t, outcome.Err)
				assert.Equal(t, 1, outcome.Submissions)
			}
		})
	}
}
