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

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	outputDirTimeFormat = "2006-01-02T15-04-05"
	maxOutputDirSuffix  = 1000
)

var ErrDescriptorWrite = errors.New("failed to write job descriptor")

// Descriptor is the data description file passed to the trainer.
type Descriptor struct {
	Classes   int
	TrainList string
	EvalList  string
	Names     string
	Backup    string
	Metrics   string
}

func (d Descriptor) Lines() []string {
	return []string{
		fmt.Sprintf("classes = %d", d.Classes),
		"train = " + d.TrainList,
		"valid = " + d.EvalList,
		"names = " + d.Names,
		"backup = " + d.Backup,
		"metrics = " + d.Metrics,
	}
}

func (d Descriptor) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w %s: %s", ErrDescriptorWrite, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, line := range d.Lines() {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("%w %s: %s", ErrDescriptorWrite, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w %s: %s", ErrDescriptorWrite, path, err)
	}
	return nil
}

// CreateOutputDir creates a directory within base named by the provided time.
// In case such directory already exists, a numeric suffix is added.
func CreateOutputDir(base string, t time.Time) (string, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := t.Format(outputDirTimeFormat)
	path := filepath.Join(base, name)
	for i := 1; i <= maxOutputDirSuffix; i++ {
		err := os.Mkdir(path, 0755)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
		path = filepath.Join(base, fmt.Sprintf("%s-%d", name, i))
	}
	return "", fmt.Errorf("failed to create output directory: too many directories named %s", name)
}
