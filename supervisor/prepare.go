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

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/czcorpus/yolotrain/dataset"
	"github.com/czcorpus/yolotrain/jobdesc"
	"github.com/czcorpus/yolotrain/modelcfg"
	"github.com/rs/zerolog/log"
)

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// prepare materializes the dataset, the trainer config and the job
// descriptor. The stop flag is checked between the individual steps.
func (s *Supervisor) prepare(ctx context.Context, job Job) (modelcfg.TrainingConfig, string, error) {
	cfg := job.Params
	if err := cfg.Validate(); err != nil {
		return cfg, "", fmt.Errorf("failed to prepare training: %w", err)
	}
	if err := os.MkdirAll(s.layout.DataDir(), 0755); err != nil {
		return cfg, "", fmt.Errorf("failed to prepare training: %w", err)
	}
	if err := removeIfExists(s.layout.LogPath()); err != nil {
		return cfg, "", fmt.Errorf("failed to remove previous log: %w", err)
	}
	if err := removeIfExists(s.layout.MetricsPath()); err != nil {
		return cfg, "", fmt.Errorf("failed to remove previous metrics: %w", err)
	}
	if err := s.checkStop(ctx); err != nil {
		return cfg, "", err
	}

	rec, err := dataset.Load(job.DatasetPath)
	if err != nil {
		return cfg, "", err
	}
	if job.SourceFormat != dataset.NativeFormat {
		if err := rec.WriteAnnotationFiles(); err != nil {
			return cfg, "", err
		}

	} else {
		log.Info().Msg("dataset already in native format, skipping annotation conversion")
	}
	if err := s.checkStop(ctx); err != nil {
		return cfg, "", err
	}

	split, err := rec.Split(cfg.SplitRatio)
	if err != nil {
		return cfg, "", err
	}
	if err := split.WriteFiles(s.layout.TrainListPath(), s.layout.EvalListPath()); err != nil {
		return cfg, "", err
	}
	classes, err := rec.ClassTable()
	if err != nil {
		return cfg, "", err
	}
	if err := classes.WriteFile(s.layout.ClassesPath()); err != nil {
		return cfg, "", err
	}
	log.Info().
		Int("train", len(split.Train)).
		Int("eval", len(split.Eval)).
		Int("classes", classes.Len()).
		Msg("dataset prepared")
	if err := s.checkStop(ctx); err != nil {
		return cfg, "", err
	}

	if cfg.AutoConfig {
		if err := os.MkdirAll(s.layout.ConfigDir(), 0755); err != nil {
			return cfg, "", fmt.Errorf("failed to prepare training config: %w", err)
		}
		cfg, err = modelcfg.Generate(
			s.layout.TemplatePath(cfg.Model.TemplateFile()),
			s.layout.RenderedConfigPath(),
			cfg,
			classes.Len(),
		)
		if err != nil {
			return cfg, "", err
		}

	} else {
		cfg = modelcfg.Recover(cfg).WithClasses(classes.Len())
	}
	log.Info().
		Str("model", cfg.Model.DisplayName()).
		Str("config", cfg.ConfigPath).
		Int("iterations", cfg.Epochs).
		Msg("training config ready")
	if err := s.checkStop(ctx); err != nil {
		return cfg, "", err
	}

	outputDir, err := jobdesc.CreateOutputDir(cfg.OutputPath, time.Now())
	if err != nil {
		return cfg, "", err
	}
	desc := jobdesc.Descriptor{
		Classes:   classes.Len(),
		TrainList: s.layout.TrainListPath(),
		EvalList:  s.layout.EvalListPath(),
		Names:     s.layout.ClassesPath(),
		Backup:    outputDir,
		Metrics:   s.layout.MetricsPath(),
	}
	if err := desc.Write(s.layout.DescriptorPath()); err != nil {
		return cfg, outputDir, err
	}
	return cfg, outputDir, nil
}
