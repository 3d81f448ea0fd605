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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrTemplateRead = errors.New("failed to read config template")
	ErrConfigWrite  = errors.New("failed to write training config")
)

const (
	itersPerClass = 2000
)

// Schedule contains values derived from the number of classes.
type Schedule struct {
	Budget  int
	BurnIn  int
	Step1   int
	Step2   int
	Filters int
}

func (s Schedule) Steps() string {
	return fmt.Sprintf("%d,%d", s.Step1, s.Step2)
}

func NewSchedule(classCount int) Schedule {
	budget := classCount * itersPerClass
	return Schedule{
		Budget:  budget,
		BurnIn:  budget * 5 / 100,
		Step1:   budget * 80 / 100,
		Step2:   budget * 90 / 100,
		Filters: (classCount + 5) * 3,
	}
}

// Render substitutes all the placeholder tokens of a template.
func Render(tpl string, cfg TrainingConfig, sched Schedule, classCount int) string {
	repl := strings.NewReplacer(
		"_batch_", strconv.Itoa(cfg.BatchSize),
		"_subdivision_", strconv.Itoa(cfg.Subdivision),
		"_width_", strconv.Itoa(cfg.InputWidth),
		"_height_", strconv.Itoa(cfg.InputHeight),
		"_momentum_", formatFloat(cfg.Momentum),
		"_decay_", formatFloat(cfg.WeightDecay),
		"_lr_", formatFloat(cfg.LearningRate),
		"_burnin_", strconv.Itoa(sched.BurnIn),
		"_epochs_", strconv.Itoa(sched.Budget),
		"_steps_", sched.Steps(),
		"_filters_", strconv.Itoa(sched.Filters),
		"_classes_", strconv.Itoa(classCount),
	)
	return repl.Replace(tpl)
}

// Generate renders the template found at tplPath into dstPath
// and returns a config updated with the derived iteration budget,
// the class count and the path of the rendered file.
func Generate(tplPath, dstPath string, cfg TrainingConfig, classCount int) (TrainingConfig, error) {
	tpl, err := os.ReadFile(tplPath)
	if err != nil {
		return cfg, fmt.Errorf("%w %s: %s", ErrTemplateRead, tplPath, err)
	}
	sched := NewSchedule(classCount)
	rendered := Render(string(tpl), cfg, sched, classCount)
	if err := os.WriteFile(dstPath, []byte(rendered), 0644); err != nil {
		return cfg, fmt.Errorf("%w %s: %s", ErrConfigWrite, dstPath, err)
	}
	cfg.Epochs = sched.Budget
	cfg.Classes = classCount
	cfg.ConfigPath = dstPath
	return cfg, nil
}
