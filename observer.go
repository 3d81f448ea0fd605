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
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// cliObserver shows training progress in terminal
type cliObserver struct {
	bar *progressbar.ProgressBar
}

func (obs *cliObserver) SetTotalSteps(n int) {
	obs.bar = progressbar.Default(int64(n), "training")
}

func (obs *cliObserver) Advance() {
	if obs.bar != nil {
		obs.bar.Add(1)
	}
}

func (obs *cliObserver) Log(msg string) {
	log.Info().Msg(msg)
}
