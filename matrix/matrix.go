// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package matrix expands the dataset type and problem type selection of a run
// into the ordered list of concrete cells to evaluate.
package matrix

import (
	"github.com/petmal/lwlltrial/config"
)

// Cell is one concrete (dataset type, problem type) combination.
// Neither coordinate is ever `all`.
type Cell struct {
	DatasetType config.DatasetType `json:"dataset_type"`
	ProblemType config.ProblemType `json:"problem_type"`
}

func (c Cell) String() string {
	return c.DatasetType.String() + "/" + c.ProblemType.String()
}

// Expand returns the cells selected by datasetType and problemType.
// Dataset types form the outer loop and problem types the inner loop, both in the
// order of config.ConcreteDatasetTypes and config.ConcreteProblemTypes.
// Unknown values are reported as a config.ConfigurationError.
func Expand(datasetType config.DatasetType, problemType config.ProblemType) ([]Cell, error) {
	datasetTypes, err := expandDatasetType(datasetType)
	if err != nil {
		return nil, err
	}
	problemTypes, err := expandProblemType(problemType)
	if err != nil {
		return nil, err
	}

	cells := make([]Cell, 0, len(datasetTypes)*len(problemTypes))
	for _, dt := range datasetTypes {
		for _, pt := range problemTypes {
			cells = append(cells, Cell{DatasetType: dt, ProblemType: pt})
		}
	}
	return cells, nil
}

func expandDatasetType(datasetType config.DatasetType) ([]config.DatasetType, error) {
	switch datasetType {
	case config.DatasetSample, config.DatasetFull:
		return []config.DatasetType{datasetType}, nil
	case config.DatasetAll:
		return config.ConcreteDatasetTypes(), nil
	}
	return nil, &config.ConfigurationError{
		Field:  "dataset_type",
		Value:  datasetType.String(),
		Reason: "unsupported dataset type",
	}
}

func expandProblemType(problemType config.ProblemType) ([]config.ProblemType, error) {
	switch problemType {
	case config.ImageClassification, config.ObjectDetection, config.VideoClassification, config.MachineTranslation:
		return []config.ProblemType{problemType}, nil
	case config.AllProblemTypes:
		return config.ConcreteProblemTypes(), nil
	}
	return nil, &config.ConfigurationError{
		Field:  "problem_type",
		Value:  problemType.String(),
		Reason: "unsupported problem type",
	}
}
