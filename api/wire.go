// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package api

const (
	sessionActive   = "In Progress"
	sessionComplete = "Complete"
)

type listTasksResponse struct {
	Tasks []string `json:"tasks"`
}

type taskMetadata struct {
	TaskID            string `json:"task_id,omitempty"`
	ProblemType       string `json:"problem_type"`
	BaseDataset       string `json:"base_dataset"`
	AdaptationDataset string `json:"adaptation_dataset"`
}

type taskMetadataResponse struct {
	TaskMetadata taskMetadata `json:"task_metadata"`
}

type createSessionRequest struct {
	SessionName string `json:"session_name"`
	DataType    string `json:"data_type"`
	TaskID      string `json:"task_id"`
}

type createSessionResponse struct {
	SessionToken string `json:"session_token"`
}

type sessionStatus struct {
	Active                    string      `json:"active"`
	PairStage                 string      `json:"pair_stage"`
	BudgetUsed                int         `json:"budget_used"`
	BudgetLeftUntilCheckpoint int         `json:"budget_left_until_checkpoint"`
	CurrentDataset            DatasetInfo `json:"current_dataset"`
	DateLastInteracted        string      `json:"date_last_interacted,omitempty"`
}

func (s sessionStatus) isComplete() bool {
	return s.Active == sessionComplete
}

type sessionStatusResponse struct {
	SessionStatus sessionStatus `json:"Session_Status"`
}

type labelsResponse struct {
	Labels []Label `json:"Labels"`
}

type queryLabelsRequest struct {
	ExampleIDs []string `json:"example_ids"`
}

type submitPredictionsRequest struct {
	Predictions Predictions `json:"predictions"`
}

var (
	listTasksSchema     = newResponseSchema[listTasksResponse]("list_tasks")
	taskMetadataSchema  = newResponseSchema[taskMetadataResponse]("task_metadata")
	createSessionSchema = newResponseSchema[createSessionResponse]("create_session")
	sessionStatusSchema = newResponseSchema[sessionStatusResponse]("session_status")
	labelsSchema        = newResponseSchema[labelsResponse]("labels")
	submitSchema        = newResponseSchema[map[string]any]("submit_predictions")
)
