// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package model contains the models answering session checkpoints.
// The placeholder model shipped here performs no learning: it produces well formed
// predictions for the test split of the current dataset so that a session can run
// to completion.
package model

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/config"
)

var (
	// ErrStageNotSet is returned when predictions are requested before the stage is known.
	ErrStageNotSet = errors.New("stage not set before predicting")
	// ErrDatasetUnavailable is returned when the local copy of the current dataset cannot be read.
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	// ErrNoClasses is returned when the current dataset declares no classes.
	ErrNoClasses = errors.New("dataset declares no classes")
)

const (
	placeholderBBox        = "20, 20, 80, 80"
	placeholderConfidence  = 0.95
	placeholderTranslation = "The quick brown fox jumps over the lazy dog"
)

// Model answers the checkpoints of one session.
type Model interface {
	// SetStage tells the model which stage the session is in and which dataset it uses.
	SetStage(stage string, dataset api.DatasetInfo)
	// Observe hands labels received from the API to the model.
	Observe(labels []api.Label)
	// LabelRequest returns the examples the model wants labelled next.
	LabelRequest() api.LabelRequest
	// Predict returns predictions for the test split of the current dataset.
	Predict() (api.Predictions, error)
}

// Factory creates the model used for a session of task.
type Factory func(task api.TaskDescriptor, datasetType config.DatasetType) (Model, error)

// NewPlaceholderFactory returns a Factory of placeholder models reading datasets below datasetDir.
func NewPlaceholderFactory(env config.Environment, datasetDir string) Factory {
	return func(task api.TaskDescriptor, datasetType config.DatasetType) (Model, error) {
		return NewPlaceholderModel(env, datasetDir, datasetType), nil
	}
}

// PlaceholderModel predicts random classes (or fixed boxes and sentences) for every test example.
type PlaceholderModel struct {
	workingDir  string
	datasetType config.DatasetType
	stage       string
	dataset     api.DatasetInfo
	labels      map[string]api.Label
	rnd         *rand.Rand
}

// NewPlaceholderModel creates a placeholder model. Datasets are looked up in the
// development or evaluation directory of datasetDir, depending on env.
func NewPlaceholderModel(env config.Environment, datasetDir string, datasetType config.DatasetType) *PlaceholderModel {
	return &PlaceholderModel{
		workingDir:  filepath.Join(datasetDir, env.WorkingDir()),
		datasetType: datasetType,
		labels:      make(map[string]api.Label),
		rnd:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec
	}
}

// WithSeed makes the random choices of the model reproducible.
func (m *PlaceholderModel) WithSeed(seed uint64) *PlaceholderModel {
	m.rnd = rand.New(rand.NewPCG(seed, seed)) //nolint:gosec
	return m
}

func (m *PlaceholderModel) SetStage(stage string, dataset api.DatasetInfo) {
	m.stage = stage
	m.dataset = dataset
}

// Observe caches labels by example id. The cache is not used for predictions.
func (m *PlaceholderModel) Observe(labels []api.Label) {
	for _, label := range labels {
		m.labels[label.ID] = label
	}
}

// LabelCount returns the number of distinct examples labelled so far.
func (m *PlaceholderModel) LabelCount() int {
	return len(m.labels)
}

// LabelRequest never asks for labels.
func (m *PlaceholderModel) LabelRequest() api.LabelRequest {
	return api.LabelRequest{}
}

func (m *PlaceholderModel) Predict() (api.Predictions, error) {
	if m.stage == "" || m.dataset.Name == "" {
		return api.Predictions{}, ErrStageNotSet
	}

	problemType, err := config.ParseProblemType(m.dataset.ProblemType)
	if err != nil || !problemType.IsConcrete() {
		return api.Predictions{}, fmt.Errorf("%w: unsupported dataset type %q", ErrDatasetUnavailable, m.dataset.ProblemType)
	}

	switch problemType {
	case config.ImageClassification:
		return m.predictImages()
	case config.ObjectDetection:
		return m.predictBoxes()
	case config.VideoClassification:
		return m.predictVideos()
	case config.MachineTranslation:
		return m.predictTranslations()
	}
	return api.Predictions{}, fmt.Errorf("%w: unsupported dataset type %q", ErrDatasetUnavailable, m.dataset.ProblemType)
}

// splitDir returns the directory holding the current dataset's split, e.g. development/mnist/mnist_sample.
func (m *PlaceholderModel) splitDir() string {
	name := m.dataset.Name
	return filepath.Join(m.workingDir, name, name+"_"+m.datasetType.String())
}

func (m *PlaceholderModel) predictImages() (api.Predictions, error) {
	if len(m.dataset.Classes) == 0 {
		return api.Predictions{}, fmt.Errorf("%w: %s", ErrNoClasses, m.dataset.Name)
	}
	files, err := m.testEntries(false)
	if err != nil {
		return api.Predictions{}, err
	}
	predictions := api.NewPredictions("id", "class")
	for _, file := range files {
		if err := predictions.Append(file, m.randomClass()); err != nil {
			return api.Predictions{}, err
		}
	}
	return predictions, nil
}

func (m *PlaceholderModel) predictBoxes() (api.Predictions, error) {
	if len(m.dataset.Classes) == 0 {
		return api.Predictions{}, fmt.Errorf("%w: %s", ErrNoClasses, m.dataset.Name)
	}
	files, err := m.testEntries(false)
	if err != nil {
		return api.Predictions{}, err
	}
	predictions := api.NewPredictions("id", "bbox", "confidence", "class")
	for _, file := range files {
		if err := predictions.Append(file, placeholderBBox, placeholderConfidence, m.dataset.Classes[0]); err != nil {
			return api.Predictions{}, err
		}
	}
	return predictions, nil
}

func (m *PlaceholderModel) predictVideos() (api.Predictions, error) {
	if len(m.dataset.Classes) == 0 {
		return api.Predictions{}, fmt.Errorf("%w: %s", ErrNoClasses, m.dataset.Name)
	}
	// One directory of frames per video.
	videos, err := m.testEntries(true)
	if err != nil {
		return api.Predictions{}, err
	}
	predictions := api.NewPredictions("id", "class")
	for _, video := range videos {
		if err := predictions.Append(video, m.randomClass()); err != nil {
			return api.Predictions{}, err
		}
	}
	return predictions, nil
}

func (m *PlaceholderModel) predictTranslations() (api.Predictions, error) {
	ids, err := readFeatherColumn(filepath.Join(m.splitDir(), testDataFile), "id")
	if err != nil {
		return api.Predictions{}, err
	}
	predictions := api.NewPredictions("id", "text")
	for _, id := range ids {
		if err := predictions.Append(id, placeholderTranslation); err != nil {
			return api.Predictions{}, err
		}
	}
	return predictions, nil
}

func (m *PlaceholderModel) randomClass() string {
	return m.dataset.Classes[m.rnd.IntN(len(m.dataset.Classes))]
}

// testEntries lists the names of the files (or directories) in the test split, sorted.
func (m *PlaceholderModel) testEntries(dirs bool) ([]string, error) {
	testDir := filepath.Join(m.splitDir(), "test")
	entries, err := os.ReadDir(testDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() == dirs && (dirs || entry.Type().IsRegular()) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
