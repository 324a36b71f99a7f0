// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/api/apitest"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/pkg/testutils"
)

func TestBackoffWithCallback(t *testing.T) {
	var callbackCalls []struct {
		attempt uint64
		delay   time.Duration
	}

	callback := func(nextRetryAttempt uint64, nextDelay time.Duration) {
		callbackCalls = append(callbackCalls, struct {
			attempt uint64
			delay   time.Duration
		}{nextRetryAttempt, nextDelay})
	}

	// Create a simple backoff that returns 3 delays then stops.
	baseBackoff := retry.BackoffFunc(func() (time.Duration, bool) {
		callCount := len(callbackCalls)
		if callCount >= 3 {
			return 0, true
		}
		return time.Duration(callCount+1) * time.Millisecond, false
	})

	backoff := BackoffWithCallback(callback, baseBackoff)

	for i := 0; i < 5; i++ {
		delay, stop := backoff.Next()
		if stop {
			break
		}
		assert.Equal(t, time.Duration(i+1)*time.Millisecond, delay)
	}

	assert.Len(t, callbackCalls, 3)
	for i, call := range callbackCalls {
		assert.Equal(t, uint64(i+1), call.attempt, "Call %d: expected attempt", i) //nolint:gosec
		assert.Equal(t, time.Duration(i+1)*time.Millisecond, call.delay, "Call %d: expected delay", i)
	}
}

func TestNewExecutor(t *testing.T) {
	client := apitest.NewScriptedClient()

	tests := []struct {
		name        string
		settings    config.Settings
		wantLimiter bool
	}{
		{
			name:        "without rate limiting",
			settings:    config.DefaultSettings(),
			wantLimiter: false,
		},
		{
			name:        "with rate limiting",
			settings:    config.Settings{MaxRequestsPerMinute: 60},
			wantLimiter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewExecutor(client, tt.settings, testutils.NewTestLogger(t))

			assert.Equal(t, client, executor.Client)
			assert.Equal(t, tt.settings, executor.Settings)
			if tt.wantLimiter {
				require.NotNil(t, executor.limiter)
				assert.Equal(t, 60, executor.limiter.Burst())
			} else {
				assert.Nil(t, executor.limiter)
			}
		})
	}
}

func startSession(t *testing.T, client api.Client, task api.TaskDescriptor) *api.Session {
	session, err := client.StartSession(context.Background(), task, config.DatasetSample, "executor")
	require.NoError(t, err)
	return session
}

func TestExecutorAdvance(t *testing.T) {
	transient := api.WrapErrRetryable(errors.New("connection reset by peer"))
	permanent := errors.New("mock error")

	tests := []struct {
		name       string
		policy     config.RetryPolicy
		steps      []apitest.AdvanceStep
		wantAction api.CheckpointAction
		wantErr    error
		wantCalls  int
	}{
		{
			name:       "success without retry",
			steps:      []apitest.AdvanceStep{{Action: api.ActionSubmit}},
			wantAction: api.ActionSubmit,
			wantCalls:  1,
		},
		{
			name:      "transient error without retry policy",
			steps:     []apitest.AdvanceStep{{Err: transient}, {Action: api.ActionSubmit}},
			wantErr:   api.ErrRetryable,
			wantCalls: 1,
		},
		{
			name:       "transient error retried",
			policy:     config.RetryPolicy{MaxRetryAttempts: 2, InitialDelaySeconds: 1},
			steps:      []apitest.AdvanceStep{{Err: transient}, {Action: api.ActionContinue}},
			wantAction: api.ActionContinue,
			wantCalls:  2,
		},
		{
			name:      "retries exhausted",
			policy:    config.RetryPolicy{MaxRetryAttempts: 1, InitialDelaySeconds: 1},
			steps:     []apitest.AdvanceStep{{Err: transient}, {Err: transient}, {Err: transient}},
			wantErr:   api.ErrRetryable,
			wantCalls: 2,
		},
		{
			name:      "permanent error not retried",
			policy:    config.RetryPolicy{MaxRetryAttempts: 2, InitialDelaySeconds: 1},
			steps:     []apitest.AdvanceStep{{Err: permanent}, {Action: api.ActionSubmit}},
			wantErr:   permanent,
			wantCalls: 1,
		},
		{
			name:      "authentication error not retried",
			policy:    config.RetryPolicy{MaxRetryAttempts: 2, InitialDelaySeconds: 1},
			steps:     []apitest.AdvanceStep{{Err: api.NewErrAPIResponse(401, nil)}, {Action: api.ActionSubmit}},
			wantErr:   api.ErrAuthentication,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := apitest.Task("task-1", config.ImageClassification)
			client := apitest.NewScriptedClient(task).Script(task.ID, apitest.SessionScript{Advance: tt.steps})
			executor := NewExecutor(client, config.Settings{RequestTimeout: time.Minute, RetryPolicy: tt.policy}, testutils.NewTestLogger(t))
			session := startSession(t, executor, task)

			state, err := executor.Advance(context.Background(), session, api.LabelRequest{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantAction, state.Action)
			}

			advances := 0
			for _, call := range client.Calls() {
				if call == "Advance task-1" {
					advances++
				}
			}
			assert.Equal(t, tt.wantCalls, advances)
		})
	}
}

func TestExecutorTimeout(t *testing.T) {
	task := apitest.Task("slow", config.ObjectDetection)
	client := apitest.NewScriptedClient(task).Script(task.ID, apitest.SessionScript{
		Advance: []apitest.AdvanceStep{{Block: true}, {Action: api.ActionSubmit}},
	})
	settings := config.Settings{
		RequestTimeout: 20 * time.Millisecond,
		RetryPolicy:    config.RetryPolicy{MaxRetryAttempts: 2, InitialDelaySeconds: 1},
	}
	executor := NewExecutor(client, settings, testutils.NewTestLogger(t))
	session := startSession(t, executor, task)

	_, err := executor.Advance(context.Background(), session, api.LabelRequest{})
	require.ErrorIs(t, err, api.ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, api.ErrRetryable)
	assert.Equal(t, []string{"StartSession slow", "Advance slow"}, client.Calls(), "timeouts must not be retried")
}

func TestExecutorContextCanceled(t *testing.T) {
	task := apitest.Task("task-1", config.ImageClassification)
	client := apitest.NewScriptedClient(task)
	executor := NewExecutor(client, config.DefaultSettings(), testutils.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.ListTasks(ctx, config.ImageClassification, config.DatasetSample)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, client.Calls())
}

func TestExecutorDelegates(t *testing.T) {
	task := apitest.Task("task-1", config.VideoClassification)
	client := apitest.NewScriptedClient(task)
	executor := NewExecutor(client, config.Settings{MaxRequestsPerMinute: 600}, testutils.NewTestLogger(t))
	ctx := context.Background()

	tasks, err := executor.ListTasks(ctx, config.VideoClassification, config.DatasetFull)
	require.NoError(t, err)
	assert.Equal(t, []api.TaskDescriptor{task}, tasks)

	session := startSession(t, executor, task)
	result, err := executor.Submit(ctx, session, api.NewPredictions("id", "class"))
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	require.NoError(t, executor.Close(ctx))
	assert.True(t, client.Closed())
	assert.Equal(t, []string{"ListTasks full/video_classification", "StartSession task-1", "Submit task-1"}, client.Calls())
}
