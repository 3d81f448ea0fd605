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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/yolotrain/jobdesc"
	"github.com/czcorpus/yolotrain/modelcfg"
	"github.com/rs/zerolog/log"
)

const (
	dfltJobName                = "train_yolo"
	dfltPollIntervalMs         = 100
	dfltMetricsFileWaitMs      = 200
	dfltDrainTimeoutSecs       = 120
	dfltMetricsQueueCapacity   = 256
	dfltTrainerLogMaxSizeMB    = 100
	dfltServerReadTimeoutSecs  = 30
	dfltServerWriteTimeoutSecs = 30
)

type Conf struct {
	srcPath string
	Logging logging.LoggingConf `json:"logging"`

	// WorkDir contains the trainer binary and the `data` directory
	// with all the job files
	WorkDir     string `json:"workDir"`
	TrainerPath string `json:"trainerPath"`
	JobName     string `json:"jobName"`

	// ModelHubURL is a base URL for downloading pretrained weights.
	// With empty value, the weights must be already present.
	ModelHubURL  string `json:"modelHubUrl"`
	NativeLibDir string `json:"nativeLibDir"`

	PollIntervalMs       int    `json:"pollIntervalMs"`
	MetricsFileWaitMs    int    `json:"metricsFileWaitMs"`
	DrainTimeoutSecs     int    `json:"drainTimeoutSecs"`
	MetricsQueueCapacity int    `json:"metricsQueueCapacity"`
	TrackingDBPath       string `json:"trackingDbPath"`
	WeightsRegistryPath  string `json:"weightsRegistryPath"`
	TrainerLogMaxSizeMB  int    `json:"trainerLogMaxSizeMB"`

	ListenAddress          string   `json:"listenAddress"`
	ListenPort             int      `json:"listenPort"`
	ServerReadTimeoutSecs  int      `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int      `json:"serverWriteTimeoutSecs"`
	CorsAllowedOrigins     []string `json:"corsAllowedOrigins"`

	// Training contains (possibly partial) default hyperparameters
	// of training jobs
	Training json.RawMessage `json:"training"`
}

func (conf *Conf) Layout() jobdesc.Layout {
	return jobdesc.Layout{WorkDir: conf.WorkDir}
}

func (conf *Conf) PollInterval() time.Duration {
	return time.Duration(conf.PollIntervalMs) * time.Millisecond
}

func (conf *Conf) MetricsFileWait() time.Duration {
	return time.Duration(conf.MetricsFileWaitMs) * time.Millisecond
}

func (conf *Conf) DrainTimeout() time.Duration {
	return time.Duration(conf.DrainTimeoutSecs) * time.Second
}

func (conf *Conf) APIEnabled() bool {
	return conf.ListenPort > 0
}

// TrainingConfig returns training hyperparameters as defined
// in the `training` section applied over the default values.
func (conf *Conf) TrainingConfig() (modelcfg.TrainingConfig, error) {
	ans := modelcfg.DefaultTrainingConfig(conf.Layout().ModelsDir())
	if len(bytes.TrimSpace(conf.Training)) == 0 {
		return ans, nil
	}
	if err := json.Unmarshal(conf.Training, &ans); err != nil {
		return ans, fmt.Errorf("failed to read training section of %s: %w", conf.srcPath, err)
	}
	return ans, nil
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	var conf Conf
	conf.srcPath = path
	err = json.Unmarshal(rawData, &conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return &conf
}

func ValidateAndDefaults(conf *Conf) {
	if conf.WorkDir == "" {
		log.Fatal().Msg("workDir not specified")
	}
	if !filepath.IsAbs(conf.WorkDir) {
		abs, err := filepath.Abs(conf.WorkDir)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid workDir")
		}
		conf.WorkDir = abs
	}
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	if conf.TrainerPath == "" {
		conf.TrainerPath = conf.Layout().DefaultTrainerPath()
		log.Warn().Str("trainerPath", conf.TrainerPath).Msg("trainerPath not specified, using default")
	}
	if conf.JobName == "" {
		conf.JobName = dfltJobName
		log.Warn().Str("jobName", conf.JobName).Msg("jobName not specified, using default")
	}
	if conf.ModelHubURL == "" {
		log.Warn().Msg("modelHubUrl not specified, pretrained weights must be available locally")
	}
	if conf.PollIntervalMs <= 0 {
		conf.PollIntervalMs = dfltPollIntervalMs
		log.Warn().Msgf("pollIntervalMs not specified, using default: %d", dfltPollIntervalMs)
	}
	if conf.MetricsFileWaitMs <= 0 {
		conf.MetricsFileWaitMs = dfltMetricsFileWaitMs
		log.Warn().Msgf("metricsFileWaitMs not specified, using default: %d", dfltMetricsFileWaitMs)
	}
	if conf.DrainTimeoutSecs <= 0 {
		conf.DrainTimeoutSecs = dfltDrainTimeoutSecs
		log.Warn().Msgf("drainTimeoutSecs not specified, using default: %d", dfltDrainTimeoutSecs)
	}
	if conf.MetricsQueueCapacity <= 0 {
		conf.MetricsQueueCapacity = dfltMetricsQueueCapacity
		log.Warn().Msgf("metricsQueueCapacity not specified, using default: %d", dfltMetricsQueueCapacity)
	}
	if conf.TrackingDBPath == "" {
		conf.TrackingDBPath = filepath.Join(conf.Layout().DataDir(), "tracking.sqlite")
		log.Warn().Str("path", conf.TrackingDBPath).Msg("trackingDbPath not specified, using default")
	}
	if conf.WeightsRegistryPath == "" {
		conf.WeightsRegistryPath = filepath.Join(conf.Layout().DataDir(), "weights-registry")
		log.Warn().Str("path", conf.WeightsRegistryPath).Msg("weightsRegistryPath not specified, using default")
	}
	if conf.TrainerLogMaxSizeMB <= 0 {
		conf.TrainerLogMaxSizeMB = dfltTrainerLogMaxSizeMB
		log.Warn().Msgf("trainerLogMaxSizeMB not specified, using default: %d", dfltTrainerLogMaxSizeMB)
	}
	if conf.APIEnabled() {
		if conf.ServerReadTimeoutSecs == 0 {
			conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
			log.Warn().Msgf(
				"serverReadTimeoutSecs not specified, using default: %d",
				dfltServerReadTimeoutSecs,
			)
		}
		if conf.ServerWriteTimeoutSecs == 0 {
			conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
			log.Warn().Msgf(
				"serverWriteTimeoutSecs not specified, using default: %d",
				dfltServerWriteTimeoutSecs,
			)
		}
	}
	if _, err := conf.TrainingConfig(); err != nil {
		log.Fatal().Err(err).Msg("invalid training defaults")
	}
}
