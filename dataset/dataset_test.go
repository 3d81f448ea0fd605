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
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBox(t *testing.T) {
	box, err := NormalizeBox([]float64{50, 20, 40, 30}, 200, 100)
	assert.NoError(t, err)
	assert.InDelta(t, 0.35, box.CenterX, 1e-9)
	assert.InDelta(t, 0.35, box.CenterY, 1e-9)
	assert.InDelta(t, 0.2, box.Width, 1e-9)
	assert.InDelta(t, 0.3, box.Height, 1e-9)
	assert.Equal(t, "3 0.35 0.35 0.2 0.3", box.Line(3))
}

func TestNormalizeBoxInvalid(t *testing.T) {
	_, err := NormalizeBox([]float64{1, 2, 3}, 200, 100)
	assert.ErrorIs(t, err, ErrInvalidStructure)
	_, err = NormalizeBox([]float64{1, 2, 3, 4}, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

func TestAnnotationPath(t *testing.T) {
	assert.Equal(t, "/data/imgs/cat01.txt", AnnotationPath("/data/imgs/cat01.jpg"))
	assert.Equal(t, "/data/imgs/a.b.txt", AnnotationPath("/data/imgs/a.b.png"))
}

func TestParseMissingImages(t *testing.T) {
	rec, err := Parse([]byte(`{"metadata": {"category_names": {"0": "cat"}}}`))
	require.NoError(t, err)
	assert.ErrorIs(t, rec.WriteAnnotationFiles(), ErrInvalidStructure)
	_, err = rec.Split(0.5)
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

func TestParseImagesNotArray(t *testing.T) {
	_, err := Parse([]byte(`{"images": {"filename": "a.jpg"}}`))
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"images": [`))
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

func TestClassTableMissingMetadata(t *testing.T) {
	rec, err := Parse([]byte(`{"images": []}`))
	require.NoError(t, err)
	_, err = rec.ClassTable()
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

func TestClassTableFillsGaps(t *testing.T) {
	rec, err := Parse([]byte(`{"images": [], "metadata": {"category_names": {"1": "cat", "4": "dog", "2": "bird"}}}`))
	require.NoError(t, err)
	table, err := rec.ClassTable()
	require.NoError(t, err)
	assert.Equal(t, ClassTable{"None", "cat", "bird", "None", "dog"}, table)
}

func TestClassTableSizeProperty(t *testing.T) {
	idSets := [][]int{{0}, {7}, {0, 1, 2}, {3, 9, 11}, {5, 2}}
	for _, ids := range idSets {
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, fmt.Sprintf(`"%d": "class%d"`, id, id))
		}
		src := fmt.Sprintf(`{"metadata": {"category_names": {%s}}}`, strings.Join(names, ", "))
		rec, err := Parse([]byte(src))
		require.NoError(t, err)
		table, err := rec.ClassTable()
		require.NoError(t, err)
		assert.Equal(t, slices.Max(ids)+1, table.Len())
		for i, name := range table {
			if slices.Contains(ids, i) {
				assert.Equal(t, "class"+strconv.Itoa(i), name)

			} else {
				assert.Equal(t, UnknownClassName, name)
			}
		}
	}
}

func TestClassTableInvalidID(t *testing.T) {
	rec, err := Parse([]byte(`{"metadata": {"category_names": {"x": "cat"}}}`))
	require.NoError(t, err)
	_, err = rec.ClassTable()
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

func makeRecord(n int) *Record {
	rec := &Record{hasImages: true}
	for i := 0; i < n; i++ {
		rec.Images = append(rec.Images, Image{Filename: fmt.Sprintf("/imgs/%03d.jpg", i)})
	}
	return rec
}

func TestSplitProperties(t *testing.T) {
	cases := []struct {
		n     int
		ratio float64
		train int
	}{
		{0, 0.5, 0},
		{1, 0.5, 0},
		{1, 1, 1},
		{7, 0.25, 1},
		{10, 0, 0},
		{10, 0.9, 9},
		{10, 1, 10},
		{33, 0.5, 16},
		{100, 0.29, 29},
		{100, 0.57, 57},
	}
	for _, c := range cases {
		rec := makeRecord(c.n)
		sm, err := rec.Split(c.ratio)
		require.NoError(t, err)
		assert.Equal(t, c.train, len(sm.Train), "n=%d ratio=%v", c.n, c.ratio)
		assert.Equal(t, c.n-c.train, len(sm.Eval))
		all := append(slices.Clone(sm.Train), sm.Eval...)
		slices.Sort(all)
		orig, _ := rec.ImagePaths()
		slices.Sort(orig)
		assert.Equal(t, orig, all)
		for _, p := range sm.Train {
			assert.NotContains(t, sm.Eval, p)
		}
	}
}

func TestSplitInvalidRatio(t *testing.T) {
	_, err := makeRecord(3).Split(1.5)
	assert.ErrorIs(t, err, ErrInvalidSplitRatio)
}

func TestWriteAnnotationFiles(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "img01.jpg")
	src := fmt.Sprintf(
		`{"images": [{"filename": %q, "width": 200, "height": 100, "annotations": [`+
			`{"category_id": 2, "bbox": [50, 20, 40, 30]}, {"category_id": 0, "bbox": [0, 0, 200, 100]}]}]}`,
		imgPath,
	)
	rec, err := Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, rec.WriteAnnotationFiles())
	data, err := os.ReadFile(filepath.Join(dir, "img01.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2 0.35 0.35 0.2 0.3\n0 0.5 0.5 1 1\n", string(data))
}

func TestWriteSplitAndClasses(t *testing.T) {
	dir := t.TempDir()
	rec := makeRecord(4)
	sm, err := rec.Split(0.5)
	require.NoError(t, err)
	trainPath := filepath.Join(dir, "train.txt")
	evalPath := filepath.Join(dir, "eval.txt")
	require.NoError(t, sm.WriteFiles(trainPath, evalPath))
	data, err := os.ReadFile(trainPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	classPath := filepath.Join(dir, "classes.txt")
	require.NoError(t, ClassTable{"cat", "None", "dog"}.WriteFile(classPath))
	data, err = os.ReadFile(classPath)
	require.NoError(t, err)
	assert.Equal(t, "cat\nNone\ndog\n", string(data))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
