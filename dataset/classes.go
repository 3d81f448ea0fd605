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
	"strconv"
)

const (
	UnknownClassName = "None"
)

// ClassTable contains class names indexed by category id.
type ClassTable []string

func (ct ClassTable) Len() int {
	return len(ct)
}

// WriteFile stores the names, one per line, in the index order.
func (ct ClassTable) WriteFile(path string) error {
	if err := writeLines(path, ct); err != nil {
		return fmt.Errorf("failed to create class names file: %w", err)
	}
	return nil
}

// ClassTable derives the table from the dataset metadata.
// Ids missing in the metadata are named UnknownClassName.
func (rec *Record) ClassTable() (ClassTable, error) {
	if !rec.hasMetadata {
		return ClassTable{}, fmt.Errorf("failed to create class table: %w", ErrInvalidStructure)
	}
	ids := make(map[int]string, len(rec.Metadata.CategoryNames))
	size := 0
	for k, name := range rec.Metadata.CategoryNames {
		id, err := strconv.Atoi(k)
		if err != nil || id < 0 {
			return ClassTable{}, fmt.Errorf(
				"failed to create class table: %w: invalid category id '%s'", ErrInvalidStructure, k)
		}
		ids[id] = name
		size = max(size, id+1)
	}
	ans := make(ClassTable, size)
	for i := range ans {
		name, ok := ids[i]
		if !ok {
			name = UnknownClassName
		}
		ans[i] = name
	}
	return ans, nil
}
