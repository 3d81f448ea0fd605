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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// NativeFormat is the source format tag of datasets which already
	// come with per-image annotation files in the trainer's layout.
	NativeFormat = "yolo"
)

var ErrInvalidStructure = errors.New("invalid dataset structure")

type Annotation struct {
	CategoryID int `json:"category_id"`

	// BBox is [x, y, w, h] in pixels, origin in the top-left corner
	BBox []float64 `json:"bbox"`
}

type Image struct {
	Filename    string       `json:"filename"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Annotations []Annotation `json:"annotations"`
}

type Metadata struct {

	// CategoryNames maps a (string encoded) integer category id
	// to a class name. The ids may be sparse.
	CategoryNames map[string]string `json:"category_names"`
}

// Record is a normalized dataset as serialized by the dataset provider.
// Presence of the top-level blocks is tracked separately because each
// derived artifact requires a different part of the structure and the
// respective check happens only once the artifact is requested.
type Record struct {
	Images   []Image
	Metadata Metadata

	hasImages   bool
	hasMetadata bool
}

// ImagePaths returns file paths of all images in their original order.
func (rec *Record) ImagePaths() ([]string, error) {
	if !rec.hasImages {
		return []string{}, ErrInvalidStructure
	}
	ans := make([]string, len(rec.Images))
	for i, img := range rec.Images {
		ans[i] = img.Filename
	}
	return ans, nil
}

func isJSONArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}

// Parse decodes the dataset JSON. Missing `images` or `metadata`
// blocks are not reported here (see Record), but a present block
// with a wrong shape is.
func Parse(data []byte) (*Record, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStructure, err)
	}
	rec := &Record{}
	if rawImages, ok := root["images"]; ok {
		if !isJSONArray(rawImages) {
			return nil, fmt.Errorf("%w: `images` is not an array", ErrInvalidStructure)
		}
		if err := json.Unmarshal(rawImages, &rec.Images); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStructure, err)
		}
		rec.hasImages = true
	}
	if rawMeta, ok := root["metadata"]; ok {
		if err := json.Unmarshal(rawMeta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStructure, err)
		}
		rec.hasMetadata = true
	}
	return rec, nil
}

// Load reads and parses a dataset JSON file.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	rec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}
	return rec, nil
}

func writeLines(path string, lines []string) error {
	var buff strings.Builder
	for _, line := range lines {
		buff.WriteString(line)
		buff.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(buff.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
