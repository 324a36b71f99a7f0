// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package execution provides the call execution policy shared by every API call of a run.
// It handles concerns such as per-call timeouts, retry logic and rate limiting, so that
// the task runners only deal with the outcome of each call.
package execution

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/pkg/logging"
)

// BackoffWithCallback wraps a retry.Backoff with a callback function that is called
// before each retry attempt. The callback receives the next retry attempt number
// and the delay duration.
func BackoffWithCallback(onBackoff func(nextRetryAttempt uint64, nextDelay time.Duration), next retry.Backoff) retry.Backoff {
	var retryCounter uint64 = 0
	return retry.BackoffFunc(func() (nextDelay time.Duration, stop bool) {
		nextDelay, stop = next.Next()
		if stop {
			return
		}

		nextRetry := atomic.AddUint64(&retryCounter, 1)
		onBackoff(nextRetry, nextDelay)

		return
	})
}

// Executor is an api.Client applying the run's call policy to another client.
type Executor struct {
	Client   api.Client
	Settings config.Settings
	logger   logging.Logger
	limiter  *rate.Limiter
}

// NewExecutor wraps client with the timeout, rate limit and retry policy of settings.
func NewExecutor(client api.Client, settings config.Settings, logger logging.Logger) *Executor {
	var limiter *rate.Limiter
	if settings.MaxRequestsPerMinute > 0 {
		ratePerSecond := rate.Limit(settings.MaxRequestsPerMinute) / 60
		limiter = rate.NewLimiter(ratePerSecond, settings.MaxRequestsPerMinute) // allow a burst up to the per-minute limit
	}

	return &Executor{
		Client:   client,
		Settings: settings,
		logger:   logger,
		limiter:  limiter,
	}
}

func (e *Executor) ListTasks(ctx context.Context, problemType config.ProblemType, datasetType config.DatasetType) ([]api.TaskDescriptor, error) {
	return execute(ctx, e, "list tasks", func(ctx context.Context) ([]api.TaskDescriptor, error) {
		return e.Client.ListTasks(ctx, problemType, datasetType)
	})
}

func (e *Executor) StartSession(ctx context.Context, task api.TaskDescriptor, datasetType config.DatasetType, sessionName string) (*api.Session, error) {
	return execute(ctx, e, "start session", func(ctx context.Context) (*api.Session, error) {
		return e.Client.StartSession(ctx, task, datasetType, sessionName)
	})
}

func (e *Executor) Advance(ctx context.Context, session *api.Session, request api.LabelRequest) (api.CheckpointState, error) {
	return execute(ctx, e, "advance session", func(ctx context.Context) (api.CheckpointState, error) {
		return e.Client.Advance(ctx, session, request)
	})
}

func (e *Executor) Submit(ctx context.Context, session *api.Session, predictions api.Predictions) (api.SubmissionResult, error) {
	return execute(ctx, e, "submit predictions", func(ctx context.Context) (api.SubmissionResult, error) {
		return e.Client.Submit(ctx, session, predictions)
	})
}

func (e *Executor) Close(ctx context.Context) error {
	return e.Client.Close(ctx)
}

func execute[T any](ctx context.Context, e *Executor, operation string, call func(ctx context.Context) (T, error)) (T, error) {
	policy := e.Settings.RetryPolicy
	if !policy.Enabled() {
		return executeOnce(ctx, e, operation, call)
	}

	backoff := retry.NewExponential(policy.InitialDelay())
	backoff = retry.WithMaxRetries(uint64(policy.MaxRetryAttempts), backoff)
	backoff = BackoffWithCallback(func(nextRetryAttempt uint64, nextDelay time.Duration) {
		e.logger.Message(ctx, logging.LevelInfo, "retrying %s %d/%d in %v",
			operation, nextRetryAttempt, policy.MaxRetryAttempts, nextDelay)
	}, backoff)

	return retry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		return executeOnce(ctx, e, operation, call)
	})
}

func executeOnce[T any](ctx context.Context, e *Executor, operation string, call func(ctx context.Context) (T, error)) (result T, err error) {
	if err = ctx.Err(); err != nil {
		e.logger.Error(ctx, logging.LevelWarn, err, "aborting %s", operation)
		return
	}

	if e.limiter != nil {
		if err = e.limiter.Wait(ctx); err != nil {
			e.logger.Error(ctx, logging.LevelWarn, err, "aborting %s", operation)
			return
		}
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.Settings.RequestTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.Settings.RequestTimeout)
	}
	defer cancel()

	result, err = call(callCtx)
	if err != nil && !errors.Is(err, api.ErrTimeout) && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = api.WrapErrTimeout(err)
	}
	if errors.Is(err, api.ErrRetryable) {
		e.logger.Error(ctx, logging.LevelWarn, err, "%s encountered a transient error", operation)
		err = retry.RetryableError(err)
	}
	return
}
