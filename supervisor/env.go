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

package supervisor

import (
	"slices"
	"strings"
)

const (
	libPathVar = "LD_LIBRARY_PATH"
)

// buildEnv prepares the trainer's environment. On linux, libDir is
// prepended to the dynamic library search path unless it is already there.
func buildEnv(environ []string, libDir, goos string) []string {
	ans := slices.Clone(environ)
	if goos != "linux" || libDir == "" {
		return ans
	}
	prefix := libPathVar + "="
	for i, item := range ans {
		if !strings.HasPrefix(item, prefix) {
			continue
		}
		curr := strings.TrimPrefix(item, prefix)
		if curr == "" {
			ans[i] = prefix + libDir
			return ans
		}
		if slices.Contains(strings.Split(curr, ":"), libDir) {
			return ans
		}
		ans[i] = prefix + libDir + ":" + curr
		return ans
	}
	return append(ans, prefix+libDir)
}
