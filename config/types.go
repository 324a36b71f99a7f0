// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"slices"
	"strconv"
	"strings"
)

// DatasetType selects the dataset partition a task is run against.
type DatasetType int

const (
	// DatasetSample is the small partition of a dataset.
	DatasetSample DatasetType = iota
	// DatasetFull is the complete partition of a dataset.
	DatasetFull
	// DatasetAll selects every concrete partition.
	DatasetAll
)

var datasetTypeNames = [...]string{
	DatasetSample: "sample",
	DatasetFull:   "full",
	DatasetAll:    "all",
}

func (d DatasetType) String() string {
	if d < 0 || int(d) >= len(datasetTypeNames) {
		return "DatasetType(" + strconv.Itoa(int(d)) + ")"
	}
	return datasetTypeNames[d]
}

// MarshalText encodes d by name.
func (d DatasetType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// IsConcrete reports whether d names a single partition.
func (d DatasetType) IsConcrete() bool {
	return d == DatasetSample || d == DatasetFull
}

// ConcreteDatasetTypes returns the concrete partitions in run order.
func ConcreteDatasetTypes() []DatasetType {
	return []DatasetType{DatasetSample, DatasetFull}
}

// DatasetTypeNames returns the accepted dataset type names.
func DatasetTypeNames() []string {
	return slices.Clone(datasetTypeNames[:])
}

// ParseDatasetType converts a dataset type name into a DatasetType.
func ParseDatasetType(name string) (DatasetType, error) {
	for i, n := range datasetTypeNames {
		if n == name {
			return DatasetType(i), nil
		}
	}
	return 0, newEnumError("dataset_type", name, DatasetTypeNames())
}

// ProblemType selects the machine learning task category of a dataset.
type ProblemType int

const (
	// ImageClassification assigns one class to each image.
	ImageClassification ProblemType = iota
	// ObjectDetection predicts bounding boxes and classes.
	ObjectDetection
	// VideoClassification assigns one class to each video clip.
	VideoClassification
	// MachineTranslation translates source sentences.
	MachineTranslation
	// AllProblemTypes selects every concrete problem type.
	AllProblemTypes
)

var problemTypeNames = [...]string{
	ImageClassification: "image_classification",
	ObjectDetection:     "object_detection",
	VideoClassification: "video_classification",
	MachineTranslation:  "machine_translation",
	AllProblemTypes:     "all",
}

func (p ProblemType) String() string {
	if p < 0 || int(p) >= len(problemTypeNames) {
		return "ProblemType(" + strconv.Itoa(int(p)) + ")"
	}
	return problemTypeNames[p]
}

// MarshalText encodes p by name.
func (p ProblemType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// IsConcrete reports whether p names a single problem type.
func (p ProblemType) IsConcrete() bool {
	return p >= ImageClassification && p < AllProblemTypes
}

// ConcreteProblemTypes returns the concrete problem types in run order.
func ConcreteProblemTypes() []ProblemType {
	return []ProblemType{ImageClassification, ObjectDetection, VideoClassification, MachineTranslation}
}

// ProblemTypeNames returns the accepted problem type names.
func ProblemTypeNames() []string {
	return slices.Clone(problemTypeNames[:])
}

// ParseProblemType converts a problem type name into a ProblemType.
func ParseProblemType(name string) (ProblemType, error) {
	for i, n := range problemTypeNames {
		if n == name {
			return ProblemType(i), nil
		}
	}
	return 0, newEnumError("problem_type", name, ProblemTypeNames())
}

// Environment selects the evaluation API deployment and the dataset layout to expect.
type Environment int

const (
	// EnvLocal targets an API running on the loopback interface.
	EnvLocal Environment = iota
	// EnvDev targets the development deployment.
	EnvDev
	// EnvStaging targets the staging deployment.
	EnvStaging
	// EnvProd targets the production (evaluation) deployment.
	EnvProd
)

var environmentNames = [...]string{
	EnvLocal:   "local",
	EnvDev:     "dev",
	EnvStaging: "staging",
	EnvProd:    "prod",
}

func (e Environment) String() string {
	if e < 0 || int(e) >= len(environmentNames) {
		return "Environment(" + strconv.Itoa(int(e)) + ")"
	}
	return environmentNames[e]
}

// IsKnown reports whether e is one of the recognized environments.
func (e Environment) IsKnown() bool {
	return e >= EnvLocal && e <= EnvProd
}

// IsEvaluation reports whether e runs against evaluation datasets.
func (e Environment) IsEvaluation() bool {
	return e == EnvProd
}

// WorkingDir returns the dataset subdirectory holding the datasets used in e.
func (e Environment) WorkingDir() string {
	if e.IsEvaluation() {
		return EvaluationDir
	}
	return DevelopmentDir
}

// EnvironmentNames returns the accepted environment names.
func EnvironmentNames() []string {
	return slices.Clone(environmentNames[:])
}

// ParseEnvironment converts an environment name into an Environment.
func ParseEnvironment(name string) (Environment, error) {
	for i, n := range environmentNames {
		if n == name {
			return Environment(i), nil
		}
	}
	return 0, newEnumError("environment", name, EnvironmentNames())
}

func newEnumError(field string, value string, accepted []string) error {
	return &ConfigurationError{
		Field:  field,
		Value:  value,
		Reason: "expected one of [" + strings.Join(accepted, " ") + "]",
	}
}
