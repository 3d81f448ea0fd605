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
	"os"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"
)

var (
	batchRegexp        = regexp.MustCompile(`batch *= *([0-9]+)`)
	subdivisionsRegexp = regexp.MustCompile(`subdivisions *= *([0-9]+)`)
	widthRegexp        = regexp.MustCompile(`width *= *([0-9]+)`)
	heightRegexp       = regexp.MustCompile(`height *= *([0-9]+)`)
	momentumRegexp     = regexp.MustCompile(`momentum *= *([0-9.]+)`)
	decayRegexp        = regexp.MustCompile(`decay *= *([0-9.]+)`)
	lrRegexp           = regexp.MustCompile(`learning_rate *= *([0-9.]+)`)
	maxBatchesRegexp   = regexp.MustCompile(`max_batches *= *([0-9]+)`)
)

func findInt(re *regexp.Regexp, src []byte, curr int) int {
	m := re.FindSubmatch(src)
	if m == nil {
		return curr
	}
	v, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return curr
	}
	return v
}

func findFloat(re *regexp.Regexp, src []byte, curr float64) float64 {
	m := re.FindSubmatch(src)
	if m == nil {
		return curr
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return curr
	}
	return v
}

// Recover reads hyperparameters from an existing trainer config
// (cfg.ConfigPath). Values missing in the file keep their current
// value. An unreadable file leaves the whole config as is.
func Recover(cfg TrainingConfig) TrainingConfig {
	src, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.ConfigPath).Msg("cannot read training config, keeping current values")
		return cfg
	}
	cfg.BatchSize = findInt(batchRegexp, src, cfg.BatchSize)
	cfg.Subdivision = findInt(subdivisionsRegexp, src, cfg.Subdivision)
	cfg.InputWidth = findInt(widthRegexp, src, cfg.InputWidth)
	cfg.InputHeight = findInt(heightRegexp, src, cfg.InputHeight)
	cfg.Momentum = findFloat(momentumRegexp, src, cfg.Momentum)
	cfg.WeightDecay = findFloat(decayRegexp, src, cfg.WeightDecay)
	cfg.LearningRate = findFloat(lrRegexp, src, cfg.LearningRate)
	cfg.Epochs = findInt(maxBatchesRegexp, src, cfg.Epochs)
	return cfg
}
