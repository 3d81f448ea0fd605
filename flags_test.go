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
	"flag"
	"testing"

	"github.com/czcorpus/yolotrain/modelcfg"
	"github.com/czcorpus/yolotrain/supervisor"
	"github.com/czcorpus/yolotrain/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideOnlySetValues(t *testing.T) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	tf := registerTrainFlags(fs)
	require.NoError(t, fs.Parse([]string{"-model", "yolov3", "-batch-size", "16", "conf.json", "data.json"}))

	base := modelcfg.DefaultTrainingConfig("/out")
	base.LearningRate = 0.01
	cfg, err := tf.apply(fs, base)
	require.NoError(t, err)
	assert.Equal(t, modelcfg.VariantYOLOv3, cfg.Model)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, "/out", cfg.OutputPath)
	assert.Equal(t, 2, fs.NArg())
}

func TestFlagsInvalidModel(t *testing.T) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	tf := registerTrainFlags(fs)
	require.NoError(t, fs.Parse([]string{"-model", "yolov8"}))
	_, err := tf.apply(fs, modelcfg.DefaultTrainingConfig("/out"))
	assert.ErrorIs(t, err, modelcfg.ErrInvalidModel)
}

func TestFlagsManualModeRequiresConfig(t *testing.T) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	tf := registerTrainFlags(fs)
	require.NoError(t, fs.Parse([]string{"-auto-config=false"}))
	_, err := tf.apply(fs, modelcfg.DefaultTrainingConfig("/out"))
	assert.Error(t, err)
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, tracking.StatusCompleted, runStatus(supervisor.StateCompleted))
	assert.Equal(t, tracking.StatusCancelled, runStatus(supervisor.StateCancelled))
	assert.Equal(t, tracking.StatusFailed, runStatus(supervisor.StateFailed))
	assert.Equal(t, tracking.StatusFailed, runStatus(supervisor.StatePreparing))
}
