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

package tracking

import (
	"database/sql"
	"fmt"
	"time"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

type Run struct {
	ID        string    `json:"id"`
	JobName   string    `json:"jobName"`
	Status    RunStatus `json:"status"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished,omitempty"`
	OutputDir string    `json:"outputDir,omitempty"`
}

type MetricValue struct {
	Name  string  `json:"name"`
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

// ListRuns returns latest runs (newest first).
func (database *Database) ListRuns(limit int) ([]Run, error) {
	rows, err := database.db.Query(
		"SELECT id, job_name, status, started, finished, output_dir "+
			"FROM runs ORDER BY started DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return []Run{}, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	ans := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var started int64
		var finished sql.NullInt64
		var outputDir sql.NullString
		if err := rows.Scan(&run.ID, &run.JobName, &run.Status, &started, &finished, &outputDir); err != nil {
			return []Run{}, fmt.Errorf("failed to list runs: %w", err)
		}
		run.Started = time.Unix(started, 0)
		if finished.Valid {
			run.Finished = time.Unix(finished.Int64, 0)
		}
		if outputDir.Valid {
			run.OutputDir = outputDir.String
		}
		ans = append(ans, run)
	}
	return ans, rows.Err()
}

// RunMetrics returns all metric values of a run ordered by step.
func (database *Database) RunMetrics(runID string) ([]MetricValue, error) {
	rows, err := database.db.Query(
		"SELECT name, step, value FROM metrics WHERE run_id = ? ORDER BY step, name",
		runID,
	)
	if err != nil {
		return []MetricValue{}, fmt.Errorf("failed to fetch run metrics: %w", err)
	}
	defer rows.Close()
	ans := make([]MetricValue, 0, 100)
	for rows.Next() {
		var mv MetricValue
		if err := rows.Scan(&mv.Name, &mv.Step, &mv.Value); err != nil {
			return []MetricValue{}, fmt.Errorf("failed to fetch run metrics: %w", err)
		}
		ans = append(ans, mv)
	}
	return ans, rows.Err()
}

func (database *Database) RunParams(runID string) (map[string]string, error) {
	rows, err := database.db.Query("SELECT name, value FROM params WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run params: %w", err)
	}
	defer rows.Close()
	ans := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to fetch run params: %w", err)
		}
		ans[k] = v
	}
	return ans, rows.Err()
}

func (database *Database) RunArtifacts(runID string) ([]string, error) {
	rows, err := database.db.Query("SELECT path FROM artifacts WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run artifacts: %w", err)
	}
	defer rows.Close()
	ans := make([]string, 0, 4)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to fetch run artifacts: %w", err)
		}
		ans = append(ans, p)
	}
	return ans, rows.Err()
}
