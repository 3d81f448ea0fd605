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
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormalizedBox is a bounding box expressed relative to image size
// with the center point instead of the top-left corner.
type NormalizedBox struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Line formats the box as a trainer annotation line.
func (box NormalizedBox) Line(categoryID int) string {
	return fmt.Sprintf(
		"%d %s %s %s %s",
		categoryID,
		formatCoord(box.CenterX),
		formatCoord(box.CenterY),
		formatCoord(box.Width),
		formatCoord(box.Height),
	)
}

// NormalizeBox converts a pixel bbox (x, y, w, h) into a NormalizedBox.
func NormalizeBox(bbox []float64, imgWidth, imgHeight int) (NormalizedBox, error) {
	if len(bbox) != 4 {
		return NormalizedBox{}, fmt.Errorf("%w: bbox must have 4 items, found %d", ErrInvalidStructure, len(bbox))
	}
	if imgWidth <= 0 || imgHeight <= 0 {
		return NormalizedBox{}, fmt.Errorf("%w: invalid image size %dx%d", ErrInvalidStructure, imgWidth, imgHeight)
	}
	x, y, w, h := bbox[0], bbox[1], bbox[2], bbox[3]
	fw, fh := float64(imgWidth), float64(imgHeight)
	return NormalizedBox{
		CenterX: (x + w/2.0) / fw,
		CenterY: (y + h/2.0) / fh,
		Width:   w / fw,
		Height:  h / fh,
	}, nil
}

// AnnotationPath returns path of the annotation file belonging to an image,
// i.e. the same directory and base name with the `.txt` extension.
func AnnotationPath(imgPath string) string {
	return strings.TrimSuffix(imgPath, filepath.Ext(imgPath)) + ".txt"
}

func (img Image) annotationLines() ([]string, error) {
	ans := make([]string, 0, len(img.Annotations))
	for _, ann := range img.Annotations {
		box, err := NormalizeBox(ann.BBox, img.Width, img.Height)
		if err != nil {
			return []string{}, fmt.Errorf("image %s: %w", img.Filename, err)
		}
		ans = append(ans, box.Line(ann.CategoryID))
	}
	return ans, nil
}

// WriteAnnotationFiles writes one annotation file next to each image.
// Files written before a failing image are kept.
func (rec *Record) WriteAnnotationFiles() error {
	if !rec.hasImages {
		return fmt.Errorf("failed to create annotation files: %w", ErrInvalidStructure)
	}
	for _, img := range rec.Images {
		lines, err := img.annotationLines()
		if err != nil {
			return fmt.Errorf("failed to create annotation files: %w", err)
		}
		if err := writeLines(AnnotationPath(img.Filename), lines); err != nil {
			return fmt.Errorf("failed to create annotation files: %w", err)
		}
	}
	log.Debug().Int("numImages", len(rec.Images)).Msg("created annotation files")
	return nil
}
