// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrPredictionShape is returned when a prediction row does not match the declared columns.
var ErrPredictionShape = errors.New("prediction row does not match columns")

// Predictions is a column oriented prediction table.
// It is encoded the way the API expects a data frame: one object per column
// mapping the row index to the cell value.
type Predictions struct {
	columns []string
	rows    [][]any
}

// NewPredictions creates an empty prediction table with the given columns.
func NewPredictions(columns ...string) Predictions {
	return Predictions{columns: slices.Clone(columns)}
}

// Append adds a row. The number of values must match the number of columns.
func (p *Predictions) Append(values ...any) error {
	if len(values) != len(p.columns) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrPredictionShape, len(values), len(p.columns))
	}
	p.rows = append(p.rows, slices.Clone(values))
	return nil
}

// Columns returns the column names in declaration order.
func (p Predictions) Columns() []string {
	return slices.Clone(p.columns)
}

// Len returns the number of rows.
func (p Predictions) Len() int {
	return len(p.rows)
}

// Column returns the values of the named column, or nil if there is no such column.
func (p Predictions) Column(name string) []any {
	idx := slices.Index(p.columns, name)
	if idx < 0 {
		return nil
	}
	values := make([]any, 0, len(p.rows))
	for _, row := range p.rows {
		values = append(values, row[idx])
	}
	return values
}

// MarshalJSON encodes the table as {"column": {"0": value, "1": value, ...}, ...}.
func (p Predictions) MarshalJSON() ([]byte, error) {
	frame := make(map[string]map[string]any, len(p.columns))
	for idx, column := range p.columns {
		cells := make(map[string]any, len(p.rows))
		for rowIdx, row := range p.rows {
			cells[strconv.Itoa(rowIdx)] = row[idx]
		}
		frame[column] = cells
	}
	return json.Marshal(frame)
}
