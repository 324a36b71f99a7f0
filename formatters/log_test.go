// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogFormatterWrite(t *testing.T) {
	got := tableLines(writeReport(t, NewLogFormatter(), mockReport(t)))

	assert.Equal(t, []string{
		"ID |Dataset Type |Problem Type |Task |Status |State |Checkpoints |Submissions |Duration |Reason |",
		"task-sample-image_classification-task-a |sample |image_classification |task-a |Success |Completed |5 |2 |1m35s | |",
		"task-sample-image_classification-task-b |sample |image_classification |task-b |Failed |Advancing |3 |1 |10s |request timed out, giving up |",
		"task-sample-video_classification- |sample |video_classification |- |Skipped |Skipped |0 |0 |0s |no eligible tasks |",
		"task-full-object_detection-task-c |full |object_detection |task-c |Skipped |Skipped |0 |0 |1.5s |filtered by task id |",
	}, got)
}

func TestLogFormatterWriteEmpty(t *testing.T) {
	got := tableLines(writeReport(t, NewLogFormatter(), emptyReport()))
	assert.Len(t, got, 1)
}

func TestLogFormatterFileExt(t *testing.T) {
	formatter := NewLogFormatter()
	assert.Equal(t, "log", formatter.FileExt())
}
