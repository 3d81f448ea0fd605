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

package jobdesc

import "path/filepath"

// Layout describes the fixed file set of a training job
// within a working directory.
type Layout struct {
	WorkDir string
}

func (l Layout) DataDir() string {
	return filepath.Join(l.WorkDir, "data")
}

func (l Layout) ClassesPath() string {
	return filepath.Join(l.DataDir(), "classes.txt")
}

func (l Layout) TrainListPath() string {
	return filepath.Join(l.DataDir(), "train.txt")
}

func (l Layout) EvalListPath() string {
	return filepath.Join(l.DataDir(), "eval.txt")
}

func (l Layout) DescriptorPath() string {
	return filepath.Join(l.DataDir(), "training.data")
}

func (l Layout) MetricsPath() string {
	return filepath.Join(l.DataDir(), "metrics.txt")
}

func (l Layout) LogPath() string {
	return filepath.Join(l.DataDir(), "log.txt")
}

func (l Layout) ConfigDir() string {
	return filepath.Join(l.DataDir(), "config")
}

func (l Layout) TemplatePath(name string) string {
	return filepath.Join(l.ConfigDir(), name)
}

// RenderedConfigPath is where the auto mode stores its config
func (l Layout) RenderedConfigPath() string {
	return filepath.Join(l.ConfigDir(), "training.cfg")
}

func (l Layout) ModelsDir() string {
	return filepath.Join(l.DataDir(), "models")
}

func (l Layout) PretrainedDir() string {
	return filepath.Join(l.ModelsDir(), "pretrained")
}

func (l Layout) DefaultTrainerPath() string {
	return filepath.Join(l.WorkDir, "darknet")
}
