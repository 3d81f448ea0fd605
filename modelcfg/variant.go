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

package modelcfg

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	maxSuggestionDistance = 3
)

var ErrInvalidModel = errors.New("invalid model")

// Variant identifies a supported detector architecture.
type Variant string

const (
	VariantYOLOv4       Variant = "yolov4"
	VariantYOLOv3       Variant = "yolov3"
	VariantTinyYOLOv4   Variant = "tiny_yolov4"
	VariantTinyYOLOv3   Variant = "tiny_yolov3"
	VariantEnetB0YOLOv3 Variant = "enet_b0_yolov3"
)

type variantProps struct {
	templateFile string
	weightsFile  string
	displayName  string
}

var variants = map[Variant]variantProps{
	VariantYOLOv4:       {templateFile: "template-yolov4.cfg", weightsFile: "yolov4.conv.137", displayName: "YOLOv4"},
	VariantYOLOv3:       {templateFile: "template-yolov3.cfg", weightsFile: "darknet53.conv.74", displayName: "YOLOv3"},
	VariantTinyYOLOv4:   {templateFile: "template-yolov4-tiny.cfg", weightsFile: "yolov4-tiny.conv.29", displayName: "Tiny YOLOv4"},
	VariantTinyYOLOv3:   {templateFile: "template-yolov3-tiny-prn.cfg", weightsFile: "yolov3-tiny.conv.11", displayName: "Tiny YOLOv3"},
	VariantEnetB0YOLOv3: {templateFile: "template-enet-coco.cfg", weightsFile: "enetb0-coco.conv.132", displayName: "EfficientNet B0 YOLOv3"},
}

// SupportedVariants returns all known variants sorted by their id.
func SupportedVariants() []Variant {
	ans := make([]Variant, 0, len(variants))
	for v := range variants {
		ans = append(ans, v)
	}
	slices.Sort(ans)
	return ans
}

// closestVariant finds a supported variant most similar to v.
// In case there is no similar enough variant, false is returned.
func closestVariant(v string) (Variant, bool) {
	var ans Variant
	best := maxSuggestionDistance + 1
	for _, item := range SupportedVariants() {
		dist := levenshtein.ComputeDistance(strings.ToLower(v), string(item))
		if dist < best {
			best = dist
			ans = item
		}
	}
	return ans, best <= maxSuggestionDistance
}

func unknownVariantErr(v string) error {
	supp := SupportedVariants()
	names := make([]string, len(supp))
	for i, s := range supp {
		names[i] = string(s)
	}
	if sugg, ok := closestVariant(v); ok {
		return fmt.Errorf(
			"%w '%s' (did you mean '%s'?), available models are: %s",
			ErrInvalidModel, v, sugg, strings.Join(names, ", "),
		)
	}
	return fmt.Errorf("%w '%s', available models are: %s", ErrInvalidModel, v, strings.Join(names, ", "))
}

// ParseVariant converts a model identifier into a Variant.
func ParseVariant(v string) (Variant, error) {
	if _, ok := variants[Variant(v)]; !ok {
		return "", unknownVariantErr(v)
	}
	return Variant(v), nil
}

func (v Variant) Validate() error {
	if _, ok := variants[v]; !ok {
		return unknownVariantErr(string(v))
	}
	return nil
}

func (v Variant) TemplateFile() string {
	return variants[v].templateFile
}

// WeightsFile returns the file name of pretrained (backbone) weights.
func (v Variant) WeightsFile() string {
	return variants[v].weightsFile
}

func (v Variant) DisplayName() string {
	return variants[v].displayName
}
