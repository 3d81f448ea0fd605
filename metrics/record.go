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
	"fmt"
	"strconv"
	"strings"
)

const (
	KeyLoss    = "Loss"
	KeyMAP     = "mAP"
	KeyBestMAP = "Best mAP"
)

// Record represents a single line of the trainer's metrics file.
type Record struct {
	Iteration int     `json:"iteration"`
	Loss      float64 `json:"loss"`
	MAP       float64 `json:"mAP"`
	BestMAP   float64 `json:"bestMAP"`

	// raw holds loss, mAP and best mAP as written by the trainer
	raw [3]string
}

// ParseLine parses a line containing exactly four whitespace
// separated fields. Any other input (including a partially written
// line) returns false.
func ParseLine(line string) (Record, bool) {
	items := strings.Fields(line)
	if len(items) != 4 {
		return Record{}, false
	}
	it, err := strconv.Atoi(items[0])
	if err != nil || it < 1 {
		return Record{}, false
	}
	var vals [3]float64
	for i := 0; i < 3; i++ {
		vals[i], err = strconv.ParseFloat(items[i+1], 64)
		if err != nil {
			return Record{}, false
		}
	}
	return Record{
		Iteration: it,
		Loss:      vals[0],
		MAP:       vals[1],
		BestMAP:   vals[2],
		raw:       [3]string{items[1], items[2], items[3]},
	}, true
}

func (rec Record) field(i int, v float64) string {
	if rec.raw[i] != "" {
		return rec.raw[i]
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Message renders the record the same way the trainer wrote its values.
func (rec Record) Message() string {
	return fmt.Sprintf(
		"Epoch #%d - Loss = %s - mAP = %s - Best mAP = %s",
		rec.Iteration,
		rec.field(0, rec.Loss),
		rec.field(1, rec.MAP),
		rec.field(2, rec.BestMAP),
	)
}

func (rec Record) AsMetrics() map[string]float64 {
	return map[string]float64{
		KeyLoss:    rec.Loss,
		KeyMAP:     rec.MAP,
		KeyBestMAP: rec.BestMAP,
	}
}

// Step is the zero-based step reported to a sink.
func (rec Record) Step() int {
	return rec.Iteration - 1
}

// LogFrequency derives the sampling frequency for the slow sink
// from the total iteration budget.
func LogFrequency(budget int) int {
	return max(1, budget/100)
}

// ShouldSample tells whether a record with the provided iteration
// should be sent to the sink. With frequency 1 every record is sent.
func ShouldSample(iteration, freq int) bool {
	if freq <= 1 {
		return true
	}
	return iteration%freq == 1
}
