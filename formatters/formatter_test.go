// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/matrix"
	"github.com/petmal/lwlltrial/pkg/testutils"
	"github.com/petmal/lwlltrial/runners"
)

var (
	sampleImages = matrix.Cell{DatasetType: config.DatasetSample, ProblemType: config.ImageClassification}
	sampleVideos = matrix.Cell{DatasetType: config.DatasetSample, ProblemType: config.VideoClassification}
	fullBoxes    = matrix.Cell{DatasetType: config.DatasetFull, ProblemType: config.ObjectDetection}
)

func mockReport(t *testing.T) runners.RunReport {
	aggregator := runners.NewAggregator("01TESTRUN")
	for _, outcome := range []runners.TaskOutcome{
		{
			Cell:        sampleImages,
			TaskID:      "task-a",
			Status:      runners.StatusSuccess,
			State:       runners.StateCompleted,
			SessionName: "LwLLTrial - run 01TESTRUN - sample - task-a",
			Checkpoints: 5,
			Submissions: 2,
			Duration:    95 * time.Second,
		},
		{
			Cell:        sampleImages,
			TaskID:      "task-b",
			Status:      runners.StatusFailed,
			State:       runners.StateAdvancing,
			Reason:      "request timed out, giving up",
			SessionName: "LwLLTrial - run 01TESTRUN - sample - task-b",
			Checkpoints: 3,
			Submissions: 1,
			Duration:    10*time.Second + 400*time.Microsecond,
		},
		{
			Cell:   sampleVideos,
			Status: runners.StatusSkipped,
			State:  runners.StateSkipped,
			Reason: "no eligible tasks",
		},
		{
			Cell:     fullBoxes,
			TaskID:   "task-c",
			Status:   runners.StatusSkipped,
			State:    runners.StateSkipped,
			Reason:   "filtered by task id",
			Duration: 1500 * time.Millisecond,
		},
	} {
		require.NoError(t, aggregator.Record(outcome))
	}
	report := aggregator.Finalize()
	report.StartedAt = time.Date(1985, 3, 4, 22, 10, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(2 * time.Minute)
	return report
}

func emptyReport() runners.RunReport {
	report := runners.NewAggregator("01EMPTYRUN").Finalize()
	report.StartedAt = time.Date(1985, 3, 4, 22, 10, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt
	return report
}

func writeReport(t *testing.T, formatter Formatter, report runners.RunReport) string {
	var buf bytes.Buffer
	require.NoError(t, formatter.Write(report, &buf))
	return buf.String()
}

func assertFormatterOutputFromFile(t *testing.T, formatter Formatter, report runners.RunReport, expectedContentsFilePath string) {
	outputFileNamePattern := fmt.Sprintf("*.%s", formatter.FileExt())
	got := testutils.CreateOpenNewTestFile(t, outputFileNamePattern)
	gotFilePath := got.Name()
	require.NoError(t, formatter.Write(report, got))
	require.NoError(t, got.Close())
	t.Logf("Generated formatted file: %s\n", gotFilePath)
	testutils.AssertFileContentsSameAs(t, expectedContentsFilePath, gotFilePath)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, fmt.Errorf("disk full")
}
