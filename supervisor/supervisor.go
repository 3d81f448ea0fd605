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
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/czcorpus/cnc-gokit/fs"
	"github.com/czcorpus/yolotrain/jobdesc"
	"github.com/czcorpus/yolotrain/metrics"
	"github.com/czcorpus/yolotrain/modelcfg"
	"github.com/rs/zerolog/log"
)

var (
	ErrTrainerFailed = errors.New("trainer process failed")
	ErrAlreadyUsed   = errors.New("supervisor already executed a job")
	errStopped       = errors.New("stop requested")
)

// Tracker is an experiment tracking backend.
type Tracker interface {
	metrics.Sink
	LogParams(params map[string]string) error
	LogArtifact(path string) error
}

// WeightsResolver provides a local path of pretrained weights,
// possibly fetching them first.
type WeightsResolver interface {
	Resolve(ctx context.Context, weightsFile, dir string) (string, error)
}

// Observer receives progress information of a running job.
type Observer interface {
	metrics.ProgressObserver
	SetTotalSteps(n int)
}

type Options struct {
	TrainerPath     string
	NativeLibDir    string
	PollInterval    time.Duration
	MetricsFileWait time.Duration
	DrainTimeout    time.Duration
	QueueCapacity   int
	LogMaxSizeMB    int
}

// Job specifies a single training run.
type Job struct {
	DatasetPath  string
	SourceFormat string
	Params       modelcfg.TrainingConfig
}

type Result struct {
	State     State
	OutputDir string
	Config    modelcfg.TrainingConfig
}

// Supervisor drives a single training job. For each job,
// a new instance must be created.
type Supervisor struct {
	layout   jobdesc.Layout
	opts     Options
	tracker  Tracker
	weights  WeightsResolver
	observer Observer

	used          atomic.Bool
	stopRequested atomic.Bool

	lock      sync.Mutex
	status    Status
	runCancel context.CancelFunc
}

// Status returns a snapshot of the current job status.
// It is safe to call the method from any goroutine.
func (s *Supervisor) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	ans := s.status
	if ans.LastMetric != nil {
		m := *ans.LastMetric
		ans.LastMetric = &m
	}
	return ans
}

// Stop requests a cooperative stop of the running job.
// It is safe to call the method from any goroutine.
func (s *Supervisor) Stop() {
	s.stopRequested.Store(true)
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.runCancel != nil {
		s.runCancel()
	}
}

func (s *Supervisor) stopped(ctx context.Context) bool {
	return s.stopRequested.Load() || ctx.Err() != nil
}

func (s *Supervisor) checkStop(ctx context.Context) error {
	if s.stopped(ctx) {
		return errStopped
	}
	return nil
}

func (s *Supervisor) setState(state State) {
	s.lock.Lock()
	prev := s.status.State
	s.status.State = state
	s.lock.Unlock()
	log.Info().Stringer("from", prev).Stringer("to", state).Msg("training job state changed")
}

func (s *Supervisor) updateStatus(fn func(st *Status)) {
	s.lock.Lock()
	fn(&s.status)
	s.lock.Unlock()
}

func (s *Supervisor) finish(state State, outputDir string, cfg modelcfg.TrainingConfig, err error) (Result, error) {
	s.updateStatus(func(st *Status) {
		st.State = state
		if err != nil {
			st.Error = err.Error()
		}
	})
	switch state {
	case StateFailed:
		log.Error().Err(err).Msg("training job failed")
	case StateCancelled:
		log.Warn().Msg("training job cancelled")
	default:
		log.Info().Str("outputDir", outputDir).Msg("training job completed")
	}
	return Result{State: state, OutputDir: outputDir, Config: cfg}, err
}

// Run executes the job and blocks until it reaches one of the terminal
// states. A cancelled job returns no error.
func (s *Supervisor) Run(ctx context.Context, job Job) (Result, error) {
	if !s.used.CompareAndSwap(false, true) {
		return Result{State: s.Status().State}, ErrAlreadyUsed
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.lock.Lock()
	s.runCancel = cancel
	s.lock.Unlock()

	s.setState(StatePreparing)
	cfg, outputDir, err := s.prepare(runCtx, job)
	if errors.Is(err, errStopped) {
		s.stopRequested.Store(false)
		return s.finish(StateCancelled, outputDir, cfg, nil)

	} else if err != nil {
		return s.finish(StateFailed, outputDir, cfg, err)
	}
	s.updateStatus(func(st *Status) {
		st.OutputDir = outputDir
		st.TotalSteps = cfg.Epochs
	})

	s.setState(StateRunning)
	state, err := s.train(runCtx, cfg, outputDir)
	return s.finish(state, outputDir, cfg, err)
}

func New(
	layout jobdesc.Layout,
	opts Options,
	tracker Tracker,
	weights WeightsResolver,
	observer Observer,
) *Supervisor {
	if opts.TrainerPath == "" {
		opts.TrainerPath = layout.DefaultTrainerPath()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.MetricsFileWait <= 0 {
		opts.MetricsFileWait = 200 * time.Millisecond
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 2 * time.Minute
	}
	if tracker == nil {
		tracker = nopTracker{}
	}
	if weights == nil {
		weights = localWeights{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Supervisor{
		layout:   layout,
		opts:     opts,
		tracker:  tracker,
		weights:  weights,
		observer: observer,
	}
}

// ------

type nopTracker struct{}

func (nopTracker) LogMetrics(values map[string]float64, step int) error { return nil }

func (nopTracker) LogParams(params map[string]string) error { return nil }

func (nopTracker) LogArtifact(path string) error { return nil }

type nopObserver struct{}

func (nopObserver) Advance() {}

func (nopObserver) Log(msg string) {}

func (nopObserver) SetTotalSteps(n int) {}

// localWeights expects the weights file to be already present
type localWeights struct{}

func (localWeights) Resolve(ctx context.Context, weightsFile, dir string) (string, error) {
	path := filepath.Join(dir, weightsFile)
	isFile, err := fs.IsFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve weights: %w", err)
	}
	if !isFile {
		return "", fmt.Errorf("failed to resolve weights: file %s not found", path)
	}
	return path, nil
}
