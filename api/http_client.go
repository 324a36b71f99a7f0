// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/pkg/logging"
	"github.com/petmal/lwlltrial/pkg/utils"
	"github.com/petmal/lwlltrial/version"
)

// SeedRoundsPerStage is the number of seed label rounds at the start of each stage.
// Machine translation sessions have no seed rounds.
const SeedRoundsPerStage = 4

const (
	headerTeamSecret   = "user_secret"
	headerSessionToken = "session_token"
)

// HTTPClientOptions tunes an HTTPClient.
type HTTPClientOptions struct {
	// SkipDatasets lists datasets whose tasks are never returned by ListTasks.
	SkipDatasets utils.StringSet
	// HTTPClient is the underlying HTTP client. Defaults to a new http.Client.
	// Call deadlines come from the request context.
	HTTPClient *http.Client
}

// HTTPClient is the Client implementation speaking the LwLL evaluation API over HTTP.
type HTTPClient struct {
	endpoint   string
	secret     string
	skip       utils.StringSet
	httpClient *http.Client
	logger     logging.Logger

	mu       sync.Mutex
	metadata map[string]taskMetadata
}

// NewHTTPClient creates a client for the API at endpoint authenticated by the team secret.
func NewHTTPClient(endpoint string, secret string, opts HTTPClientOptions, logger logging.Logger) *HTTPClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		secret:     secret,
		skip:       opts.SkipDatasets,
		httpClient: httpClient,
		logger:     logger,
		metadata:   make(map[string]taskMetadata),
	}
}

// ListTasks returns the tasks of problemType. Metadata of every task is fetched once per client.
// Repeated task ids are listed once. Tasks using a skipped dataset are left out, as are tasks
// whose metadata cannot be fetched; when no listed task has metadata, ListTasks fails.
func (c *HTTPClient) ListTasks(ctx context.Context, problemType config.ProblemType, datasetType config.DatasetType) ([]TaskDescriptor, error) {
	var listed listTasksResponse
	if _, err := c.do(ctx, http.MethodGet, "/list_tasks", nil, nil, listTasksSchema, &listed); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	c.logger.Message(ctx, logging.LevelDebug, "API lists %d tasks", len(listed.Tasks))

	tasks := []TaskDescriptor{}
	seen := make(map[string]struct{}, len(listed.Tasks))
	var metadataErr error
	withMetadata := 0
	for _, id := range listed.Tasks {
		if _, repeated := seen[id]; repeated {
			c.logger.Message(ctx, logging.LevelWarn, "dropping repeated task: %s", id)
			continue
		}
		seen[id] = struct{}{}

		meta, err := c.taskMetadata(ctx, id)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrAuthentication) {
				return nil, fmt.Errorf("failed to get metadata of task %s: %w", id, err)
			}
			c.logger.Error(ctx, logging.LevelError, err, "error getting task metadata for task: %s", id)
			metadataErr = err
			continue
		}
		withMetadata++
		if c.skip.Contains(meta.BaseDataset) || c.skip.Contains(meta.AdaptationDataset) {
			c.logger.Message(ctx, logging.LevelInfo, "skipping task: %s - in dataset skip list (%s)", id, c.skip)
			continue
		}
		if meta.ProblemType != problemType.String() {
			continue
		}
		tasks = append(tasks, TaskDescriptor{
			ID:                id,
			ProblemType:       problemType,
			DatasetTypes:      config.ConcreteDatasetTypes(),
			BaseDataset:       meta.BaseDataset,
			AdaptationDataset: meta.AdaptationDataset,
		})
	}
	if withMetadata == 0 && metadataErr != nil {
		return nil, fmt.Errorf("failed to get metadata of any of %d listed tasks: %w", len(seen), metadataErr)
	}
	return tasks, nil
}

func (c *HTTPClient) taskMetadata(ctx context.Context, id string) (taskMetadata, error) {
	c.mu.Lock()
	meta, ok := c.metadata[id]
	c.mu.Unlock()
	if ok {
		return meta, nil
	}

	var resp taskMetadataResponse
	if _, err := c.do(ctx, http.MethodGet, "/task_metadata/"+url.PathEscape(id), nil, nil, taskMetadataSchema, &resp); err != nil {
		return taskMetadata{}, err
	}

	c.mu.Lock()
	c.metadata[id] = resp.TaskMetadata
	c.mu.Unlock()
	return resp.TaskMetadata, nil
}

// StartSession creates a session and loads its initial status.
func (c *HTTPClient) StartSession(ctx context.Context, task TaskDescriptor, datasetType config.DatasetType, sessionName string) (*Session, error) {
	var created createSessionResponse
	request := createSessionRequest{SessionName: sessionName, DataType: datasetType.String(), TaskID: task.ID}
	if _, err := c.do(ctx, http.MethodPost, "/auth/create_session", nil, request, createSessionSchema, &created); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session := &Session{
		Token:       created.SessionToken,
		Name:        sessionName,
		Task:        task,
		DatasetType: datasetType,
	}
	c.logger.Message(ctx, logging.LevelInfo, "started session with name: %s", sessionName)

	if _, err := c.refreshStatus(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to get initial session status: %w", err)
	}
	return session, nil
}

// Advance performs one checkpoint exchange. The session status is refreshed first;
// a completed session yields ActionComplete. At the start of each stage the seed label
// rounds are played, each one ending with ActionSubmit. Afterwards labels are queried
// while the checkpoint budget lasts and the request is not empty (ActionContinue),
// otherwise predictions are due (ActionSubmit).
func (c *HTTPClient) Advance(ctx context.Context, session *Session, request LabelRequest) (state CheckpointState, err error) {
	status, err := c.refreshStatus(ctx, session)
	if err != nil {
		return
	}

	state = CheckpointState{
		Stage:      status.PairStage,
		Dataset:    status.CurrentDataset,
		BudgetUsed: status.BudgetUsed,
		BudgetLeft: status.BudgetLeftUntilCheckpoint,
	}
	if status.isComplete() {
		state.Action = ActionComplete
		return
	}

	if status.PairStage != session.stage {
		c.logger.Message(ctx, logging.LevelInfo, "starting stage: %s", status.PairStage)
		session.stage = status.PairStage
		session.seedRoundsLeft = seedRounds(session.Task.ProblemType)
	}

	switch {
	case session.seedRoundsLeft > 0:
		round := seedRounds(session.Task.ProblemType) - session.seedRoundsLeft + 1
		c.logger.Message(ctx, logging.LevelInfo, "getting round %d seed labels", round)
		var labels labelsResponse
		if _, err = c.do(ctx, http.MethodGet, "/seed_labels", session, nil, labelsSchema, &labels); err != nil {
			err = fmt.Errorf("failed to get seed labels: %w", err)
			return
		}
		session.seedRoundsLeft--
		state.Action, state.SeedRound, state.Labels = ActionSubmit, true, labels.Labels
	case state.BudgetLeft > 0 && !request.IsEmpty():
		var labels labelsResponse
		if _, err = c.do(ctx, http.MethodPost, "/query_labels", session, queryLabelsRequest{ExampleIDs: request.ExampleIDs}, labelsSchema, &labels); err != nil {
			err = fmt.Errorf("failed to query labels: %w", err)
			return
		}
		state.Action, state.Labels = ActionContinue, labels.Labels
	default:
		state.Action = ActionSubmit
	}

	c.logger.Message(ctx, logging.LevelInfo, "budget used: %d, budget left: %d", state.BudgetUsed, state.BudgetLeft)
	return
}

// Submit sends predictions and reports the refreshed session status.
func (c *HTTPClient) Submit(ctx context.Context, session *Session, predictions Predictions) (SubmissionResult, error) {
	if _, err := c.do(ctx, http.MethodPost, "/submit_predictions", session, submitPredictionsRequest{Predictions: predictions}, submitSchema, nil); err != nil {
		return SubmissionResult{}, fmt.Errorf("failed to submit predictions: %w", err)
	}

	status, err := c.refreshStatus(ctx, session)
	if err != nil {
		return SubmissionResult{Accepted: true}, err
	}
	c.logger.Message(ctx, logging.LevelInfo, "submitted predictions. budget used: %d, budget left: %d",
		status.BudgetUsed, status.BudgetLeftUntilCheckpoint)

	return SubmissionResult{
		Accepted:        true,
		SessionComplete: status.isComplete(),
		BudgetUsed:      status.BudgetUsed,
		Stage:           status.PairStage,
	}, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close(ctx context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// refreshStatus fetches the session status and logs how it changed since the previous refresh.
// The interaction timestamp is ignored when comparing.
func (c *HTTPClient) refreshStatus(ctx context.Context, session *Session) (sessionStatus, error) {
	var resp sessionStatusResponse
	raw, err := c.do(ctx, http.MethodGet, "/session_status", session, nil, sessionStatusSchema, &resp)
	if err != nil {
		return sessionStatus{}, fmt.Errorf("failed to get session status: %w", err)
	}

	current := comparableStatus(raw)
	switch {
	case session.lastStatus == "":
		c.logger.Message(ctx, logging.LevelDebug, "initial session status:\n%s", current)
	case session.lastStatus == current:
		c.logger.Message(ctx, logging.LevelInfo, "session status did not change after refresh")
	default:
		c.logger.Message(ctx, logging.LevelDebug, "session status changed:\n%s", statusDiff(session.lastStatus, current))
	}
	session.lastStatus = current
	return resp.SessionStatus, nil
}

func comparableStatus(raw []byte) string {
	var envelope struct {
		SessionStatus map[string]any `json:"Session_Status"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return string(raw)
	}
	delete(envelope.SessionStatus, "date_last_interacted")
	// Map keys are sorted by the encoder.
	canonical, err := json.MarshalIndent(envelope.SessionStatus, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(canonical)
}

func statusDiff(previous string, current string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(previous, current, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(previous, diffs))
}

func seedRounds(problemType config.ProblemType) int {
	if problemType == config.MachineTranslation {
		return 0
	}
	return SeedRoundsPerStage
}

// do sends one request and decodes the response body into out after validating it against schema.
// The raw response body is returned on success.
func (c *HTTPClient) do(ctx context.Context, method string, path string, session *Session, payload any, schema *responseSchema, out any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request: %v", ErrRequestFailed, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set(headerTeamSecret, c.secret)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		req.Header.Set(headerSessionToken, session.Token)
	}

	c.logger.Message(ctx, logging.LevelDebug, "API handler calling `%s %s`", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewErrAPIResponse(resp.StatusCode, raw)
	}
	if err := schema.decode(raw, out); err != nil {
		return nil, err
	}
	return raw, nil
}
