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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrNoActiveRun = errors.New("no active run")

// Database is an experiment tracking store keeping runs together
// with their parameters, metrics and artifacts.
type Database struct {
	db        *sql.DB
	lock      sync.Mutex
	activeRun string
}

type tableDef struct {
	name string
	ddl  string
}

var tables = []tableDef{
	{
		name: "runs",
		ddl: "CREATE TABLE runs (" +
			"id TEXT PRIMARY KEY NOT NULL, " +
			"job_name TEXT NOT NULL, " +
			"status TEXT NOT NULL, " +
			"started INTEGER NOT NULL, " +
			"finished INTEGER, " +
			"output_dir TEXT" +
			")",
	},
	{
		name: "params",
		ddl: "CREATE TABLE params (" +
			"run_id TEXT NOT NULL REFERENCES runs(id), " +
			"name TEXT NOT NULL, " +
			"value TEXT NOT NULL, " +
			"PRIMARY KEY (run_id, name)" +
			")",
	},
	{
		name: "metrics",
		ddl: "CREATE TABLE metrics (" +
			"run_id TEXT NOT NULL REFERENCES runs(id), " +
			"name TEXT NOT NULL, " +
			"step INTEGER NOT NULL, " +
			"value FLOAT NOT NULL, " +
			"logged INTEGER NOT NULL" +
			")",
	},
	{
		name: "artifacts",
		ddl: "CREATE TABLE artifacts (" +
			"run_id TEXT NOT NULL REFERENCES runs(id), " +
			"path TEXT NOT NULL, " +
			"logged INTEGER NOT NULL" +
			")",
	},
}

func (database *Database) tableExists(tn string) (bool, error) {
	ans := database.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tn)
	var nm sql.NullString
	err := ans.Scan(&nm)
	if err == sql.ErrNoRows {
		return false, nil

	} else if err != nil {
		return false, fmt.Errorf("failed to determine existence of table %s: %w", tn, err)
	}
	return true, nil
}

// Init creates all the required tables (if missing).
func (database *Database) Init() error {
	for _, tbl := range tables {
		ex, err := database.tableExists(tbl.name)
		if err != nil {
			return fmt.Errorf("failed to init table %s: %w", tbl.name, err)
		}
		if ex {
			log.Debug().Str("table", tbl.name).Msg("table already exists")
			continue
		}
		if _, err := database.db.Exec(tbl.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tbl.name, err)
		}
		log.Info().Str("table", tbl.name).Msg("created tracking table")
	}
	return nil
}

func (database *Database) currentRun() (string, error) {
	database.lock.Lock()
	defer database.lock.Unlock()
	if database.activeRun == "" {
		return "", ErrNoActiveRun
	}
	return database.activeRun, nil
}

// StartRun registers a new run and makes it active. All the following
// Log* calls are attached to this run.
func (database *Database) StartRun(jobName string, t time.Time) (string, error) {
	id := uuid.New().String()
	_, err := database.db.Exec(
		"INSERT INTO runs (id, job_name, status, started) VALUES (?, ?, ?, ?)",
		id, jobName, StatusRunning, t.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	database.lock.Lock()
	database.activeRun = id
	database.lock.Unlock()
	return id, nil
}

// FinishRun sets a final status of the active run and deactivates it.
func (database *Database) FinishRun(status RunStatus, outputDir string, t time.Time) error {
	runID, err := database.currentRun()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	_, err = database.db.Exec(
		"UPDATE runs SET status = ?, finished = ?, output_dir = ? WHERE id = ?",
		status, t.Unix(), outputDir, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	database.lock.Lock()
	database.activeRun = ""
	database.lock.Unlock()
	return nil
}

func (database *Database) LogParams(params map[string]string) error {
	runID, err := database.currentRun()
	if err != nil {
		return fmt.Errorf("failed to log params: %w", err)
	}
	tx, err := database.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to log params: %w", err)
	}
	for k, v := range params {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO params (run_id, name, value) VALUES (?, ?, ?)",
			runID, k, v,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to log params: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to log params: %w", err)
	}
	return nil
}

func (database *Database) LogMetrics(values map[string]float64, step int) error {
	runID, err := database.currentRun()
	if err != nil {
		return fmt.Errorf("failed to log metrics: %w", err)
	}
	tx, err := database.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to log metrics: %w", err)
	}
	now := time.Now().Unix()
	for k, v := range values {
		_, err := tx.Exec(
			"INSERT INTO metrics (run_id, name, step, value, logged) VALUES (?, ?, ?, ?, ?)",
			runID, k, step, v, now,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to log metrics: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to log metrics: %w", err)
	}
	return nil
}

func (database *Database) LogArtifact(path string) error {
	runID, err := database.currentRun()
	if err != nil {
		return fmt.Errorf("failed to log artifact: %w", err)
	}
	_, err = database.db.Exec(
		"INSERT INTO artifacts (run_id, path, logged) VALUES (?, ?, ?)",
		runID, path, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to log artifact: %w", err)
	}
	return nil
}

func (database *Database) Close() error {
	if database != nil && database.db != nil {
		return database.db.Close()
	}
	return nil
}

func Open(path string) (*Database, error) {
	dbConn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking database: %w", err)
	}
	dbConn.SetMaxOpenConns(1)
	return &Database{db: dbConn}, nil
}
