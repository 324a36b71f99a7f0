// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	fakeActiveInProgress = "In Progress"
	fakeActiveComplete   = "Complete"
)

// FakeTask describes a task served by FakeAPI.
type FakeTask struct {
	ID                string
	ProblemType       string
	BaseDataset       string
	AdaptationDataset string
	Classes           []string
	// SubmissionsPerStage is the number of prediction submissions that complete one stage.
	SubmissionsPerStage int
	// Budget is the label budget reported at each checkpoint until labels are queried.
	Budget int
}

// FakeFailure makes matching requests fail.
type FakeFailure struct {
	// StatusCode is the response status. Zero means 500 unless Delay is set.
	StatusCode int
	// Body is the raw response body.
	Body string
	// Delay stalls the response before answering.
	Delay time.Duration
	// TaskID restricts the failure to requests about one task.
	TaskID string
	// Times limits how often the failure triggers. Zero means always.
	Times int

	hits int
}

type fakeSession struct {
	token       string
	name        string
	dataType    string
	task        *FakeTask
	stage       int
	submissions int
	budgetUsed  int
	budgetLeft  int
	interacted  int
}

// FakeAPI is an in-process fake of the LwLL evaluation API.
type FakeAPI struct {
	Server *httptest.Server
	Secret string

	mu       sync.Mutex
	tasks    []*FakeTask
	sessions map[string]*fakeSession
	failures map[string][]*FakeFailure
	requests []string
	payloads map[string][]json.RawMessage
}

// NewFakeAPI starts a fake API serving the given tasks. The server is closed when the test ends.
func NewFakeAPI(t *testing.T, secret string, tasks ...FakeTask) *FakeAPI {
	f := &FakeAPI{
		Secret:   secret,
		sessions: make(map[string]*fakeSession),
		failures: make(map[string][]*FakeFailure),
		payloads: make(map[string][]json.RawMessage),
	}
	for i := range tasks {
		task := tasks[i]
		if task.SubmissionsPerStage == 0 {
			task.SubmissionsPerStage = 1
		}
		if len(task.Classes) == 0 {
			task.Classes = []string{"0", "1"}
		}
		f.tasks = append(f.tasks, &task)
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake API.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// Fail registers a failure for requests matching "METHOD /path" (e.g. "GET /session_status").
func (f *FakeAPI) Fail(route string, failure FakeFailure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = append(f.failures[route], &failure)
}

// Requests returns the "METHOD /path" of every request received so far.
func (f *FakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// CountRequests returns how many requests matched route.
func (f *FakeAPI) CountRequests(route string) (n int) {
	for _, r := range f.Requests() {
		if r == route {
			n++
		}
	}
	return
}

// Payloads returns the raw JSON bodies received on route.
func (f *FakeAPI) Payloads(route string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.payloads[route]...)
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	if strings.HasPrefix(r.URL.Path, "/task_metadata/") {
		route = r.Method + " /task_metadata"
	}

	var body json.RawMessage
	if r.Body != nil && r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, route)
	if body != nil {
		f.payloads[route] = append(f.payloads[route], body)
	}
	taskID := f.requestTaskID(r, body)
	failure := f.takeFailure(route, taskID)
	f.mu.Unlock()

	if failure != nil {
		if failure.Delay > 0 {
			select {
			case <-time.After(failure.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if failure.StatusCode != 0 || failure.Body != "" || failure.Delay == 0 {
			status := failure.StatusCode
			if status == 0 {
				status = http.StatusInternalServerError
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(failure.Body))
			return
		}
	}

	if r.Header.Get("user_secret") != f.Secret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"Error": "invalid team secret"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch route {
	case "GET /list_tasks":
		ids := make([]string, 0, len(f.tasks))
		for _, task := range f.tasks {
			ids = append(ids, task.ID)
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": ids})
	case "GET /task_metadata":
		task := f.findTask(strings.TrimPrefix(r.URL.Path, "/task_metadata/"))
		if task == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"Error": "task not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"task_metadata": map[string]any{
			"task_id":            task.ID,
			"problem_type":       task.ProblemType,
			"base_dataset":       task.BaseDataset,
			"adaptation_dataset": task.AdaptationDataset,
		}})
	case "POST /auth/create_session":
		f.createSession(w, body)
	case "GET /session_status":
		if s := f.session(w, r); s != nil {
			writeJSON(w, http.StatusOK, map[string]any{"Session_Status": f.status(s)})
		}
	case "GET /seed_labels":
		if s := f.session(w, r); s != nil {
			writeJSON(w, http.StatusOK, map[string]any{"Labels": []map[string]any{{"id": "seed-1.png", "class": s.task.Classes[0]}}})
		}
	case "POST /query_labels":
		if s := f.session(w, r); s != nil {
			var req struct {
				ExampleIDs []string `json:"example_ids"`
			}
			_ = json.Unmarshal(body, &req)
			labels := make([]map[string]any, 0, len(req.ExampleIDs))
			for _, id := range req.ExampleIDs {
				labels = append(labels, map[string]any{"id": id, "class": s.task.Classes[0]})
			}
			s.budgetUsed += len(req.ExampleIDs)
			s.budgetLeft = max(0, s.budgetLeft-len(req.ExampleIDs))
			writeJSON(w, http.StatusOK, map[string]any{"Labels": labels})
		}
	case "POST /submit_predictions":
		if s := f.session(w, r); s != nil {
			f.submit(s)
			writeJSON(w, http.StatusOK, map[string]any{"Session_Status": f.status(s)})
		}
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"Error": "unknown route " + route})
	}
}

func (f *FakeAPI) createSession(w http.ResponseWriter, body json.RawMessage) {
	var req struct {
		SessionName string `json:"session_name"`
		DataType    string `json:"data_type"`
		TaskID      string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"Error": err.Error()})
		return
	}
	task := f.findTask(req.TaskID)
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"Error": "task not found"})
		return
	}
	token := fmt.Sprintf("token-%d", len(f.sessions)+1)
	f.sessions[token] = &fakeSession{
		token:      token,
		name:       req.SessionName,
		dataType:   req.DataType,
		task:       task,
		budgetLeft: task.Budget,
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_token": token})
}

func (f *FakeAPI) submit(s *fakeSession) {
	if s.stage >= 2 {
		return
	}
	s.submissions++
	s.budgetLeft = s.task.Budget
	if s.submissions >= s.task.SubmissionsPerStage {
		s.submissions = 0
		s.stage++
	}
}

func (f *FakeAPI) status(s *fakeSession) map[string]any {
	s.interacted++
	active, stage := fakeActiveInProgress, "base"
	switch {
	case s.stage >= 2:
		active, stage = fakeActiveComplete, "adaptation"
	case s.stage == 1:
		stage = "adaptation"
	}
	datasetName := s.task.BaseDataset
	if stage == "adaptation" {
		datasetName = s.task.AdaptationDataset
	}
	return map[string]any{
		"active":                       active,
		"pair_stage":                   stage,
		"task_id":                      s.task.ID,
		"session_name":                 s.name,
		"using_sample_datasets":        s.dataType == "sample",
		"budget_used":                  s.budgetUsed,
		"budget_left_until_checkpoint": s.budgetLeft,
		"date_last_interacted":         fmt.Sprintf("interaction-%d", s.interacted),
		"current_dataset": map[string]any{
			"name":              datasetName,
			"uid":               datasetName,
			"dataset_type":      s.task.ProblemType,
			"classes":           s.task.Classes,
			"number_of_classes": len(s.task.Classes),
		},
	}
}

func (f *FakeAPI) session(w http.ResponseWriter, r *http.Request) *fakeSession {
	s, ok := f.sessions[r.Header.Get("session_token")]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"Error": "invalid session token"})
		return nil
	}
	return s
}

func (f *FakeAPI) findTask(id string) *FakeTask {
	for _, task := range f.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}

func (f *FakeAPI) requestTaskID(r *http.Request, body json.RawMessage) string {
	if s, ok := f.sessions[r.Header.Get("session_token")]; ok {
		return s.task.ID
	}
	if strings.HasPrefix(r.URL.Path, "/task_metadata/") {
		return strings.TrimPrefix(r.URL.Path, "/task_metadata/")
	}
	var req struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(body, &req)
	return req.TaskID
}

func (f *FakeAPI) takeFailure(route string, taskID string) *FakeFailure {
	for _, failure := range f.failures[route] {
		if failure.TaskID != "" && failure.TaskID != taskID {
			continue
		}
		if failure.Times > 0 && failure.hits >= failure.Times {
			continue
		}
		failure.hits++
		return failure
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
