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
	"time"

	"github.com/rs/zerolog/log"
)

// ProgressObserver receives synchronous progress events.
type ProgressObserver interface {
	Advance()
	Log(msg string)
}

// Pipeline turns raw metrics file lines into progress events
// and sampled sink records.
type Pipeline struct {
	observer ProgressObserver
	worker   *Worker
	freq     int
}

func NewPipeline(sink Sink, observer ProgressObserver, budget, capacity int) *Pipeline {
	return &Pipeline{
		observer: observer,
		worker:   NewWorker(sink, capacity),
		freq:     LogFrequency(budget),
	}
}

func (p *Pipeline) Start() {
	p.worker.Start()
}

// Consume processes a single line. Lines which cannot be parsed
// are ignored. A sampled record waiting for a free queue slot
// is dropped once ctx is cancelled.
func (p *Pipeline) Consume(ctx context.Context, line string) (Record, bool) {
	rec, ok := ParseLine(line)
	if !ok {
		return Record{}, false
	}
	p.observer.Advance()
	p.observer.Log(rec.Message())
	if ShouldSample(rec.Iteration, p.freq) {
		if !p.worker.Enqueue(ctx, rec) {
			log.Debug().Int("iteration", rec.Iteration).Msg("metrics record not queued")
		}
	}
	return rec, true
}

// Drain closes the queue and waits (at most timeout) for the worker
// to process the rest of it.
func (p *Pipeline) Drain(timeout time.Duration) bool {
	p.worker.Finish()
	return p.worker.Wait(timeout)
}

func (p *Pipeline) Abort() {
	p.worker.Abort()
}
