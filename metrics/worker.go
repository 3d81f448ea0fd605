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

package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink is an external (and possibly slow) metrics consumer.
type Sink interface {
	LogMetrics(values map[string]float64, step int) error
}

// Worker forwards queued records to a Sink in a single background
// goroutine. There must be exactly one producer calling Enqueue
// and Finish.
type Worker struct {
	sink     Sink
	queue    chan Record
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	finished bool
}

func NewWorker(sink Sink, capacity int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		sink:   sink,
		queue:  make(chan Record, max(1, capacity)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			if w.ctx.Err() != nil {
				return
			}
			select {
			case <-w.ctx.Done():
				return
			case rec, ok := <-w.queue:
				if !ok {
					return
				}
				if err := w.sink.LogMetrics(rec.AsMetrics(), rec.Step()); err != nil {
					log.Warn().Err(err).Int("iteration", rec.Iteration).Msg("failed to log metrics")
				}
			}
		}
	}()
	go func() {
		w.wg.Wait()
		close(w.done)
	}()
}

// Enqueue adds a record to the queue. In case the queue is full,
// the call blocks until there is a free slot, the worker is aborted
// or ctx is cancelled. It returns false if the record was not queued.
func (w *Worker) Enqueue(ctx context.Context, rec Record) bool {
	if w.finished {
		return false
	}
	select {
	case w.queue <- rec:
		return true
	case <-w.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// Finish tells the worker there will be no more records.
// The worker stops once the queue is empty.
func (w *Worker) Finish() {
	if w.finished {
		return
	}
	w.finished = true
	close(w.queue)
}

// Wait blocks until the worker processes all the queued records
// or the timeout elapses. It returns true if the worker finished.
func (w *Worker) Wait(timeout time.Duration) bool {
	tm := time.NewTimer(timeout)
	defer tm.Stop()
	select {
	case <-w.done:
		return true
	case <-tm.C:
		return false
	}
}

// Abort stops the worker without draining the queue.
func (w *Worker) Abort() {
	w.cancel()
}
