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

package cnf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/czcorpus/yolotrain/modelcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, src string) string {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	conf := LoadConfig(writeConf(t, `{"workDir": "/opt/yolo"}`))
	ValidateAndDefaults(conf)
	assert.Equal(t, "/opt/yolo/darknet", conf.TrainerPath)
	assert.Equal(t, "train_yolo", conf.JobName)
	assert.Equal(t, 100*time.Millisecond, conf.PollInterval())
	assert.Equal(t, 200*time.Millisecond, conf.MetricsFileWait())
	assert.Equal(t, 2*time.Minute, conf.DrainTimeout())
	assert.Equal(t, 256, conf.MetricsQueueCapacity)
	assert.Equal(t, "/opt/yolo/data/tracking.sqlite", conf.TrackingDBPath)
	assert.Equal(t, "/opt/yolo/data/weights-registry", conf.WeightsRegistryPath)
	assert.False(t, conf.APIEnabled())
	assert.Equal(t, 0, conf.ServerWriteTimeoutSecs)
}

func TestTrainingSection(t *testing.T) {
	conf := LoadConfig(writeConf(
		t, `{"workDir": "/opt/yolo", "training": {"model": "yolov4", "batchSize": 64, "splitRatio": 0.8}}`))
	ValidateAndDefaults(conf)
	tc, err := conf.TrainingConfig()
	require.NoError(t, err)
	assert.Equal(t, modelcfg.VariantYOLOv4, tc.Model)
	assert.Equal(t, 64, tc.BatchSize)
	assert.Equal(t, 0.8, tc.SplitRatio)
	assert.Equal(t, 16, tc.Subdivision)
	assert.True(t, tc.AutoConfig)
	assert.Equal(t, "/opt/yolo/data/models", tc.OutputPath)
}

func TestNoTrainingSection(t *testing.T) {
	conf := LoadConfig(writeConf(t, `{"workDir": "/opt/yolo"}`))
	tc, err := conf.TrainingConfig()
	require.NoError(t, err)
	assert.Equal(t, modelcfg.DefaultTrainingConfig("/opt/yolo/data/models"), tc)
}

func TestAPIDefaults(t *testing.T) {
	conf := LoadConfig(writeConf(t, `{"workDir": "/opt/yolo", "listenPort": 8090}`))
	ValidateAndDefaults(conf)
	assert.True(t, conf.APIEnabled())
	assert.Equal(t, 30, conf.ServerReadTimeoutSecs)
	assert.Equal(t, 30, conf.ServerWriteTimeoutSecs)
}
