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

package modelcfg

import (
	"fmt"
	"strconv"
)

const (
	dfltModel        = VariantTinyYOLOv4
	dfltClasses      = 1
	dfltBatchSize    = 32
	dfltEpochs       = 1
	dfltLearningRate = 0.001
	dfltMomentum     = 0.9
	dfltWeightDecay  = 0.0005
	dfltInputWidth   = 416
	dfltInputHeight  = 416
	dfltSplitRatio   = 0.9
	dfltGPUCount     = 1
	dfltSubdivision  = 16
)

// TrainingConfig contains hyperparameters and paths of a single training job.
// All the methods have value receivers and the ones producing a changed
// configuration return a new value so a config handed to a running job
// is never changed in place.
type TrainingConfig struct {
	Model        Variant `json:"model"`
	Classes      int     `json:"classes"`
	BatchSize    int     `json:"batchSize"`
	Subdivision  int     `json:"subdivision"`
	InputWidth   int     `json:"inputWidth"`
	InputHeight  int     `json:"inputHeight"`
	Momentum     float64 `json:"momentum"`
	WeightDecay  float64 `json:"weightDecay"`
	LearningRate float64 `json:"learningRate"`

	// Epochs is the iteration budget (darknet's `max_batches`)
	Epochs int `json:"epochs"`

	GPUCount   int     `json:"gpuCount"`
	SplitRatio float64 `json:"splitRatio"`

	// AutoConfig selects between a config generated from a model template
	// and a config provided by user in ConfigPath
	AutoConfig bool   `json:"autoConfig"`
	ConfigPath string `json:"configPath"`
	OutputPath string `json:"outputPath"`
}

func DefaultTrainingConfig(outputPath string) TrainingConfig {
	return TrainingConfig{
		Model:        dfltModel,
		Classes:      dfltClasses,
		BatchSize:    dfltBatchSize,
		Subdivision:  dfltSubdivision,
		InputWidth:   dfltInputWidth,
		InputHeight:  dfltInputHeight,
		Momentum:     dfltMomentum,
		WeightDecay:  dfltWeightDecay,
		LearningRate: dfltLearningRate,
		Epochs:       dfltEpochs,
		GPUCount:     dfltGPUCount,
		SplitRatio:   dfltSplitRatio,
		AutoConfig:   true,
		OutputPath:   outputPath,
	}
}

func (c TrainingConfig) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be > 0 (got %d)", c.BatchSize)
	}
	if c.Subdivision <= 0 {
		return fmt.Errorf("subdivision must be > 0 (got %d)", c.Subdivision)
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.SplitRatio < 0 || c.SplitRatio > 1 {
		return fmt.Errorf("splitRatio must be within [0, 1] (got %.2f)", c.SplitRatio)
	}
	if !c.AutoConfig && c.ConfigPath == "" {
		return fmt.Errorf("configPath must be set when autoConfig is disabled")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("outputPath not set")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AsParams exports the config as a flat string mapping suitable
// for experiment tracking.
func (c TrainingConfig) AsParams() map[string]string {
	return map[string]string{
		"model":        string(c.Model),
		"classes":      strconv.Itoa(c.Classes),
		"batchSize":    strconv.Itoa(c.BatchSize),
		"subdivision":  strconv.Itoa(c.Subdivision),
		"inputWidth":   strconv.Itoa(c.InputWidth),
		"inputHeight":  strconv.Itoa(c.InputHeight),
		"momentum":     formatFloat(c.Momentum),
		"weightDecay":  formatFloat(c.WeightDecay),
		"learningRate": formatFloat(c.LearningRate),
		"epochs":       strconv.Itoa(c.Epochs),
		"gpuCount":     strconv.Itoa(c.GPUCount),
		"splitRatio":   formatFloat(c.SplitRatio),
		"autoConfig":   strconv.FormatBool(c.AutoConfig),
		"configPath":   c.ConfigPath,
		"outputPath":   c.OutputPath,
	}
}

func (c TrainingConfig) WithClasses(n int) TrainingConfig {
	c.Classes = n
	return c
}
