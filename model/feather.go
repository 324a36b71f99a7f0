// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package model

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// testDataFile is the Feather (Arrow IPC) file holding the test split of text datasets.
const testDataFile = "test_data.feather"

// readFeatherColumn returns the values of column in the Feather v2 file at path, as text.
func readFeatherColumn(path string, column string) ([]string, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, err)
	}
	defer fp.Close()

	reader, err := ipc.NewFileReader(fp, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDatasetUnavailable, path, err)
	}
	defer reader.Close()

	indices := reader.Schema().FieldIndices(column)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: %s: missing `%s` column", ErrDatasetUnavailable, path, column)
	}

	values := []string{}
	for i := 0; i < reader.NumRecords(); i++ {
		record, err := reader.Record(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDatasetUnavailable, path, err)
		}
		arr := record.Column(indices[0])
		for row := 0; row < arr.Len(); row++ {
			if arr.IsNull(row) {
				return nil, fmt.Errorf("%w: %s: null `%s` in row %d", ErrDatasetUnavailable, path, column, len(values))
			}
			values = append(values, arr.ValueStr(row))
		}
	}
	return values, nil
}
