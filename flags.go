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
	"strings"

	"github.com/czcorpus/yolotrain/modelcfg"
)

type trainFlags struct {
	model        *string
	batchSize    *int
	subdivision  *int
	inputWidth   *int
	inputHeight  *int
	momentum     *float64
	weightDecay  *float64
	learningRate *float64
	epochs       *int
	gpuCount     *int
	splitRatio   *float64
	autoConfig   *bool
	configPath   *string
	outputPath   *string
	sourceFormat *string
}

func registerTrainFlags(fs *flag.FlagSet) trainFlags {
	dflt := modelcfg.DefaultTrainingConfig("")
	models := make([]string, 0, 5)
	for _, v := range modelcfg.SupportedVariants() {
		models = append(models, string(v))
	}
	return trainFlags{
		model:        fs.String("model", string(dflt.Model), "model variant ("+strings.Join(models, ", ")+")"),
		batchSize:    fs.Int("batch-size", dflt.BatchSize, "batch size"),
		subdivision:  fs.Int("subdivision", dflt.Subdivision, "number of mini batches a batch is split to"),
		inputWidth:   fs.Int("input-width", dflt.InputWidth, "network input width"),
		inputHeight:  fs.Int("input-height", dflt.InputHeight, "network input height"),
		momentum:     fs.Float64("momentum", dflt.Momentum, "momentum"),
		weightDecay:  fs.Float64("weight-decay", dflt.WeightDecay, "weight decay"),
		learningRate: fs.Float64("learning-rate", dflt.LearningRate, "learning rate"),
		epochs:       fs.Int("epochs", dflt.Epochs, "iteration budget (in auto-config mode derived from the number of classes)"),
		gpuCount:     fs.Int("gpu-count", dflt.GPUCount, "number of GPUs"),
		splitRatio:   fs.Float64("split-ratio", dflt.SplitRatio, "ratio of the dataset used for training"),
		autoConfig:   fs.Bool("auto-config", dflt.AutoConfig, "generate trainer config from a model template"),
		configPath:   fs.String("config-path", "", "existing trainer config (used with -auto-config=false)"),
		outputPath:   fs.String("output-path", "", "directory for trained models (default: <workDir>/data/models)"),
		sourceFormat: fs.String("source-format", "", "source dataset format; with 'yolo', annotation files are expected to exist"),
	}
}

// apply overrides values of cfg by flags explicitly set by user
func (tf trainFlags) apply(fs *flag.FlagSet, cfg modelcfg.TrainingConfig) (modelcfg.TrainingConfig, error) {
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			var v modelcfg.Variant
			v, err = modelcfg.ParseVariant(*tf.model)
			cfg.Model = v
		case "batch-size":
			cfg.BatchSize = *tf.batchSize
		case "subdivision":
			cfg.Subdivision = *tf.subdivision
		case "input-width":
			cfg.InputWidth = *tf.inputWidth
		case "input-height":
			cfg.InputHeight = *tf.inputHeight
		case "momentum":
			cfg.Momentum = *tf.momentum
		case "weight-decay":
			cfg.WeightDecay = *tf.weightDecay
		case "learning-rate":
			cfg.LearningRate = *tf.learningRate
		case "epochs":
			cfg.Epochs = *tf.epochs
		case "gpu-count":
			cfg.GPUCount = *tf.gpuCount
		case "split-ratio":
			cfg.SplitRatio = *tf.splitRatio
		case "auto-config":
			cfg.AutoConfig = *tf.autoConfig
		case "config-path":
			cfg.ConfigPath = *tf.configPath
		case "output-path":
			cfg.OutputPath = *tf.outputPath
		}
	})
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
