// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/czcorpus/yolotrain/cnf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintRunDetail(t *testing.T) {
	conf := &cnf.Conf{TrackingDBPath: filepath.Join(t.TempDir(), "tracking.sqlite")}
	db, err := openTracking(conf)
	require.NoError(t, err)
	defer db.Close()

	runID, err := db.StartRun("train_yolo", time.Now())
	require.NoError(t, err)
	require.NoError(t, db.LogParams(map[string]string{"model": "yolov3", "batchSize": "32"}))
	require.NoError(t, db.LogMetrics(map[string]float64{"Loss": 0.5}, 0))
	require.NoError(t, db.LogArtifact("/work/config/training.cfg"))

	var buf bytes.Buffer
	require.NoError(t, printRunDetail(&buf, db, runID))
	out := buf.String()
	assert.Contains(t, out, "batchSize\t32\n")
	assert.Contains(t, out, "model\tyolov3\n")
	assert.Less(t, strings.Index(out, "batchSize\t32"), strings.Index(out, "model\tyolov3"))
	assert.Contains(t, out, "0\tLoss\t0.5000\n")
	assert.Contains(t, out, "ARTIFACT\n/work/config/training.cfg\n")
}
