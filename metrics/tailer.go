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
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	readChunkSize = 32 * 1024
)

// Tailer reads newline terminated lines appended to a file.
// An incomplete trailing line is kept until the rest of it
// is written.
type Tailer struct {
	file    *os.File
	pending []byte
	buf     []byte
}

func OpenTailer(path string) (*Tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	return &Tailer{file: f, buf: make([]byte, readChunkSize)}, nil
}

// ReadLines returns all complete lines written since the last call.
func (t *Tailer) ReadLines() ([]string, error) {
	for {
		n, err := t.file.Read(t.buf)
		if n > 0 {
			t.pending = append(t.pending, t.buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read metrics file: %w", err)
		}
		if n == 0 {
			break
		}
	}
	var ans []string
	for {
		idx := bytes.IndexByte(t.pending, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(t.pending[:idx], []byte{'\r'})
		ans = append(ans, string(line))
		t.pending = t.pending[idx+1:]
	}
	if len(t.pending) == 0 {
		t.pending = nil
	}
	return ans, nil
}

func (t *Tailer) Close() error {
	return t.file.Close()
}
