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
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/czcorpus/yolotrain/metrics"
	"github.com/czcorpus/yolotrain/modelcfg"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	processWaitDelay  = 2 * time.Second
	trainerLogBackups = 3
)

// metricsReader reads trainer's metrics file once it exists
type metricsReader struct {
	path     string
	wait     time.Duration
	tailer   *metrics.Tailer
	lastTry  time.Time
	pipeline *metrics.Pipeline
	onRecord func(rec metrics.Record)
}

func (mr *metricsReader) poll(ctx context.Context, force bool) {
	if mr.tailer == nil {
		if !force && time.Since(mr.lastTry) < mr.wait {
			return
		}
		mr.lastTry = time.Now()
		t, err := metrics.OpenTailer(mr.path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Msg("failed to open metrics file")
			}
			return
		}
		mr.tailer = t
	}
	lines, err := mr.tailer.ReadLines()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read metrics")
		return
	}
	for _, line := range lines {
		if rec, ok := mr.pipeline.Consume(ctx, line); ok {
			mr.onRecord(rec)
		}
	}
}

func (mr *metricsReader) close() {
	if mr.tailer != nil {
		mr.tailer.Close()
	}
}

func (s *Supervisor) trainerCommand(cfg modelcfg.TrainingConfig, weightsPath string) *exec.Cmd {
	cmd := exec.Command(
		s.opts.TrainerPath,
		"detector", "train",
		s.layout.DescriptorPath(),
		cfg.ConfigPath,
		weightsPath,
		"-dont_show", "-map", "-log_metrics",
	)
	cmd.Env = buildEnv(os.Environ(), s.opts.NativeLibDir, runtime.GOOS)
	cmd.WaitDelay = processWaitDelay
	return cmd
}

func (s *Supervisor) train(ctx context.Context, cfg modelcfg.TrainingConfig, outputDir string) (State, error) {
	if err := s.tracker.LogParams(cfg.AsParams()); err != nil {
		log.Warn().Err(err).Msg("failed to log training params")
	}
	s.observer.SetTotalSteps(cfg.Epochs)

	weightsPath, err := s.weights.Resolve(ctx, cfg.Model.WeightsFile(), s.layout.PretrainedDir())
	if s.stopped(ctx) {
		s.stopRequested.Store(false)
		return StateCancelled, nil

	} else if err != nil {
		return StateFailed, err
	}

	trainerLog := &lumberjack.Logger{
		Filename:   s.layout.LogPath(),
		MaxSize:    s.opts.LogMaxSizeMB,
		MaxBackups: trainerLogBackups,
	}
	cmd := s.trainerCommand(cfg, weightsPath)
	cmd.Stdout = trainerLog
	cmd.Stderr = trainerLog
	if err := cmd.Start(); err != nil {
		trainerLog.Close()
		return StateFailed, fmt.Errorf("%w: failed to start %s: %w", ErrTrainerFailed, s.opts.TrainerPath, err)
	}
	log.Info().Int("pid", cmd.Process.Pid).Str("trainer", s.opts.TrainerPath).Msg("trainer process started")
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		trainerLog.Close()
	}()

	pipeline := metrics.NewPipeline(s.tracker, s.observer, cfg.Epochs, s.opts.QueueCapacity)
	pipeline.Start()
	reader := &metricsReader{
		path:     s.layout.MetricsPath(),
		wait:     s.opts.MetricsFileWait,
		pipeline: pipeline,
		onRecord: func(rec metrics.Record) {
			s.updateStatus(func(st *Status) {
				st.LastMetric = &rec
			})
		},
	}
	defer reader.close()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	var waitErr error
	for running := true; running; {
		if s.stopped(ctx) {
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				log.Warn().Err(err).Msg("failed to kill trainer process")
			}
			<-exited
			pipeline.Abort()
			s.stopRequested.Store(false)
			return StateCancelled, nil
		}
		reader.poll(ctx, false)
		select {
		case waitErr = <-exited:
			running = false
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
	reader.poll(ctx, true)

	if s.stopped(ctx) {
		pipeline.Abort()
		s.stopRequested.Store(false)
		return StateCancelled, nil
	}
	if waitErr != nil {
		pipeline.Abort()
		return StateFailed, fmt.Errorf("%w: %w", ErrTrainerFailed, waitErr)
	}
	return s.finalize(pipeline, cfg, outputDir)
}

func (s *Supervisor) finalize(pipeline *metrics.Pipeline, cfg modelcfg.TrainingConfig, outputDir string) (State, error) {
	s.observer.Log("Waiting for metrics logging process...")
	if !pipeline.Drain(s.opts.DrainTimeout) {
		log.Warn().Dur("timeout", s.opts.DrainTimeout).Msg("metrics logging did not finish in time")
		pipeline.Abort()
	}
	if err := s.tracker.LogArtifact(cfg.ConfigPath); err != nil {
		log.Warn().Err(err).Msg("failed to log config artifact")
	}
	if err := copyFile(cfg.ConfigPath, filepath.Join(outputDir, "training.cfg")); err != nil {
		return StateFailed, fmt.Errorf("failed to finalize training: %w", err)
	}
	if err := copyFile(s.layout.ClassesPath(), filepath.Join(outputDir, "classes.txt")); err != nil {
		return StateFailed, fmt.Errorf("failed to finalize training: %w", err)
	}
	s.observer.Log("YOLO training finished!")
	return StateCompleted, nil
}

func copyFile(src, dst string) error {
	fr, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fr.Close()
	fw, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, fr); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}
