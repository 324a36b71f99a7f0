// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/pkg/testutils"
)

func createDatasets(t *testing.T, workingDir string) string {
	root := testutils.CreateDatasetDir(t, "external", workingDir)
	testutils.WriteDatasetFiles(t, root, map[string]string{
		workingDir + "/mnist/mnist_sample/test/3.png":                    "",
		workingDir + "/mnist/mnist_sample/test/1.png":                    "",
		workingDir + "/mnist/mnist_sample/test/2.png":                    "",
		workingDir + "/mnist/mnist_full/test/1.png":                      "",
		workingDir + "/voc2009/voc2009_sample/test/a.jpg":                "",
		workingDir + "/voc2009/voc2009_sample/test/b.jpg":                "",
		workingDir + "/hmdb/hmdb_sample/test/clip_1/frame_1.jpg":         "",
		workingDir + "/hmdb/hmdb_sample/test/clip_1/frame_2.jpg":         "",
		workingDir + "/hmdb/hmdb_sample/test/clip_2/frame_1.jpg":         "",
		workingDir + "/hmdb/hmdb_sample/test/readme.txt":                 "",
	})
	writeFeather(t, filepath.Join(root, workingDir, "global_voices", "global_voices_sample", testDataFile),
		featherColumn{name: "id", strings: []string{"s1", "s2"}},
		featherColumn{name: "source", strings: []string{"hello", "bonjour, monde"}})
	writeFeather(t, filepath.Join(root, workingDir, "numbered_mt", "numbered_mt_sample", testDataFile),
		featherColumn{name: "source", strings: []string{"one", "two", "three"}},
		featherColumn{name: "id", ints: []int64{7, 8, 9}})
	writeFeather(t, filepath.Join(root, workingDir, "broken_mt", "broken_mt_sample", testDataFile),
		featherColumn{name: "source", strings: []string{"hello"}})
	testutils.WriteDatasetFiles(t, root, map[string]string{
		workingDir + "/corrupt_mt/corrupt_mt_sample/" + testDataFile: "id,source\ns1,hello\n",
	})
	return root
}

// featherColumn is a string or an int64 column of a Feather fixture.
type featherColumn struct {
	name    string
	strings []string
	ints    []int64
}

// writeFeather writes the columns as a single-batch Feather v2 (Arrow IPC) file.
func writeFeather(t *testing.T, path string, columns ...featherColumn) {
	fields := make([]arrow.Field, 0, len(columns))
	for _, column := range columns {
		dataType := arrow.DataType(arrow.BinaryTypes.String)
		if column.ints != nil {
			dataType = arrow.PrimitiveTypes.Int64
		}
		fields = append(fields, arrow.Field{Name: column.name, Type: dataType})
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()
	for i, column := range columns {
		if column.ints != nil {
			builder.Field(i).(*array.Int64Builder).AppendValues(column.ints, nil)
		} else {
			builder.Field(i).(*array.StringBuilder).AppendValues(column.strings, nil)
		}
	}
	record := builder.NewRecord()
	defer record.Release()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	fp, err := os.Create(path)
	require.NoError(t, err)
	defer fp.Close()

	writer, err := ipc.NewFileWriter(fp, ipc.WithSchema(schema))
	require.NoError(t, err)
	require.NoError(t, writer.Write(record))
	require.NoError(t, writer.Close())
}

func TestPlaceholderModelPredict(t *testing.T) {
	root := createDatasets(t, config.DevelopmentDir)

	tests := []struct {
		name        string
		datasetType config.DatasetType
		dataset     api.DatasetInfo
		want        string
	}{
		{
			name:        "image classification",
			datasetType: config.DatasetSample,
			dataset:     api.DatasetInfo{Name: "mnist", ProblemType: "image_classification", Classes: []string{"7"}},
			want:        `{"id": {"0": "1.png", "1": "2.png", "2": "3.png"}, "class": {"0": "7", "1": "7", "2": "7"}}`,
		},
		{
			name:        "image classification full split",
			datasetType: config.DatasetFull,
			dataset:     api.DatasetInfo{Name: "mnist", ProblemType: "image_classification", Classes: []string{"0"}},
			want:        `{"id": {"0": "1.png"}, "class": {"0": "0"}}`,
		},
		{
			name:        "object detection",
			datasetType: config.DatasetSample,
			dataset:     api.DatasetInfo{Name: "voc2009", ProblemType: "object_detection", Classes: []string{"cat", "dog"}},
			want: `{
				"id": {"0": "a.jpg", "1": "b.jpg"},
				"bbox": {"0": "20, 20, 80, 80", "1": "20, 20, 80, 80"},
				"confidence": {"0": 0.95, "1": 0.95},
				"class": {"0": "cat", "1": "cat"}
			}`,
		},
		{
			name:        "video classification",
			datasetType: config.DatasetSample,
			dataset:     api.DatasetInfo{Name: "hmdb", ProblemType: "video_classification", Classes: []string{"run"}},
			want:        `{"id": {"0": "clip_1", "1": "clip_2"}, "class": {"0": "run", "1": "run"}}`,
		},
		{
			name:        "machine translation",
			datasetType: config.DatasetSample,
			dataset:     api.DatasetInfo{Name: "global_voices", ProblemType: "machine_translation"},
			want: `{
				"id": {"0": "s1", "1": "s2"},
				"text": {"0": "The quick brown fox jumps over the lazy dog", "1": "The quick brown fox jumps over the lazy dog"}
			}`,
		},
		{
			name:        "machine translation with numeric ids",
			datasetType: config.DatasetSample,
			dataset:     api.DatasetInfo{Name: "numbered_mt", ProblemType: "machine_translation"},
			want: `{
				"id": {"0": "7", "1": "8", "2": "9"},
				"text": {
					"0": "The quick brown fox jumps over the lazy dog",
					"1": "The quick brown fox jumps over the lazy dog",
					"2": "The quick brown fox jumps over the lazy dog"
				}
			}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPlaceholderModel(config.EnvDev, root, tt.datasetType)
			m.SetStage("base", tt.dataset)

			predictions, err := m.Predict()
			require.NoError(t, err)
			got, err := json.Marshal(predictions)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestPlaceholderModelRandomClasses(t *testing.T) {
	root := createDatasets(t, config.DevelopmentDir)
	classes := []string{"0", "1", "2", "3"}

	m := NewPlaceholderModel(config.EnvLocal, root, config.DatasetSample).WithSeed(42)
	m.SetStage("adaptation", api.DatasetInfo{Name: "mnist", ProblemType: "image_classification", Classes: classes})

	predictions, err := m.Predict()
	require.NoError(t, err)
	require.Equal(t, 3, predictions.Len())
	for _, class := range predictions.Column("class") {
		assert.Contains(t, classes, class)
	}

	again := NewPlaceholderModel(config.EnvLocal, root, config.DatasetSample).WithSeed(42)
	again.SetStage("base", m.dataset)
	repeated, err := again.Predict()
	require.NoError(t, err)
	assert.Equal(t, predictions.Column("class"), repeated.Column("class"))
}

func TestPlaceholderModelEvaluationLayout(t *testing.T) {
	root := createDatasets(t, config.EvaluationDir)

	m := NewPlaceholderModel(config.EnvProd, root, config.DatasetSample)
	m.SetStage("base", api.DatasetInfo{Name: "voc2009", ProblemType: "object_detection", Classes: []string{"cat"}})
	predictions, err := m.Predict()
	require.NoError(t, err)
	assert.Equal(t, 2, predictions.Len())

	m = NewPlaceholderModel(config.EnvDev, root, config.DatasetSample)
	m.SetStage("base", api.DatasetInfo{Name: "voc2009", ProblemType: "object_detection", Classes: []string{"cat"}})
	_, err = m.Predict()
	require.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestPlaceholderModelPredictErrors(t *testing.T) {
	root := createDatasets(t, config.DevelopmentDir)

	tests := []struct {
		name    string
		stage   string
		dataset api.DatasetInfo
		wantErr error
	}{
		{
			name:    "stage not set",
			wantErr: ErrStageNotSet,
		},
		{
			name:    "missing dataset",
			stage:   "base",
			dataset: api.DatasetInfo{Name: "cifar100", ProblemType: "image_classification", Classes: []string{"0"}},
			wantErr: ErrDatasetUnavailable,
		},
		{
			name:    "no classes",
			stage:   "base",
			dataset: api.DatasetInfo{Name: "mnist", ProblemType: "image_classification"},
			wantErr: ErrNoClasses,
		},
		{
			name:    "unknown dataset type",
			stage:   "base",
			dataset: api.DatasetInfo{Name: "mnist", ProblemType: "segmentation", Classes: []string{"0"}},
			wantErr: ErrDatasetUnavailable,
		},
		{
			name:    "translation without id column",
			stage:   "base",
			dataset: api.DatasetInfo{Name: "broken_mt", ProblemType: "machine_translation"},
			wantErr: ErrDatasetUnavailable,
		},
		{
			name:    "translation file is not feather",
			stage:   "base",
			dataset: api.DatasetInfo{Name: "corrupt_mt", ProblemType: "machine_translation"},
			wantErr: ErrDatasetUnavailable,
		},
		{
			name:    "translation file missing",
			stage:   "base",
			dataset: api.DatasetInfo{Name: "ted_talks", ProblemType: "machine_translation"},
			wantErr: ErrDatasetUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPlaceholderModel(config.EnvDev, root, config.DatasetSample)
			if tt.stage != "" {
				m.SetStage(tt.stage, tt.dataset)
			}
			_, err := m.Predict()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaceholderModelLabels(t *testing.T) {
	m := NewPlaceholderModel(config.EnvDev, t.TempDir(), config.DatasetSample)
	assert.True(t, m.LabelRequest().IsEmpty())

	m.Observe([]api.Label{{ID: "1.png", Class: "3"}, {ID: "2.png", Class: "4"}})
	m.Observe([]api.Label{{ID: "1.png", Class: "3"}})
	assert.Equal(t, 2, m.LabelCount())
}

func TestNewPlaceholderFactory(t *testing.T) {
	factory := NewPlaceholderFactory(config.EnvDev, "/data")
	m, err := factory(api.TaskDescriptor{ID: "task"}, config.DatasetFull)
	require.NoError(t, err)
	require.IsType(t, &PlaceholderModel{}, m)

	placeholder := m.(*PlaceholderModel)
	placeholder.SetStage("base", api.DatasetInfo{Name: "mnist"})
	assert.Equal(t, filepath.Join("/data", "development", "mnist", "mnist_full"), placeholder.splitDir())
}
