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

package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// floatTolerance absorbs representation errors like 0.29 * 100 = 28.999...
const floatTolerance = 1e-9

var ErrInvalidSplitRatio = errors.New("split ratio must be within [0, 1]")

// SplitManifest holds two disjoint lists of image paths.
type SplitManifest struct {
	Train []string
	Eval  []string
}

// WriteFiles stores both lists as newline-delimited files.
func (sm SplitManifest) WriteFiles(trainPath, evalPath string) error {
	if err := writeLines(trainPath, sm.Train); err != nil {
		return fmt.Errorf("failed to write train list: %w", err)
	}
	if err := writeLines(evalPath, sm.Eval); err != nil {
		return fmt.Errorf("failed to write eval list: %w", err)
	}
	return nil
}

// Split shuffles all image paths and takes floor(ratio * N) of them
// as the training set, the rest goes to the evaluation set.
// The shuffle is intentionally not seeded.
func (rec *Record) Split(ratio float64) (SplitManifest, error) {
	if ratio < 0 || ratio > 1 {
		return SplitManifest{}, fmt.Errorf("failed to split dataset: %w (got %.2f)", ErrInvalidSplitRatio, ratio)
	}
	paths, err := rec.ImagePaths()
	if err != nil {
		return SplitManifest{}, fmt.Errorf("failed to split dataset: %w", err)
	}
	trainSize := min(len(paths), int(math.Floor(ratio*float64(len(paths))+floatTolerance)))
	rand.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})
	return SplitManifest{
		Train: paths[:trainSize],
		Eval:  paths[trainSize:],
	}, nil
}
