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

package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/czcorpus/yolotrain/cnf"
	"github.com/czcorpus/yolotrain/metrics"
	"github.com/czcorpus/yolotrain/supervisor"
	"github.com/czcorpus/yolotrain/tracking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	status  supervisor.Status
	stopped int
}

func (fj *fakeJob) Status() supervisor.Status {
	return fj.status
}

func (fj *fakeJob) Stop() {
	fj.stopped++
}

type fakeRuns struct {
	lastLimit int
}

func (fr *fakeRuns) ListRuns(limit int) ([]tracking.Run, error) {
	fr.lastLimit = limit
	return []tracking.Run{{ID: "r1", JobName: "train_yolo", Status: tracking.StatusCompleted}}, nil
}

func newTestServer(job JobController) *Server {
	gin.SetMode(gin.TestMode)
	conf := &cnf.Conf{CorsAllowedOrigins: []string{"http://localhost:3000"}}
	conf.Logging.Level = "debug"
	return New(conf, job, nil)
}

func TestStatus(t *testing.T) {
	job := &fakeJob{status: supervisor.Status{
		State:      supervisor.StateRunning,
		TotalSteps: 4000,
		LastMetric: &metrics.Record{Iteration: 12, Loss: 1.5, MAP: 0.2, BestMAP: 0.25},
		OutputDir:  "/out/run",
	}}
	engine := newTestServer(job).routes()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	var ans map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ans))
	assert.Equal(t, "running", ans["state"])
	assert.Equal(t, float64(4000), ans["totalSteps"])
	assert.Equal(t, "/out/run", ans["outputDir"])
	lastMetric := ans["lastMetric"].(map[string]any)
	assert.Equal(t, float64(12), lastMetric["iteration"])
}

func TestStop(t *testing.T) {
	job := &fakeJob{status: supervisor.Status{State: supervisor.StateRunning}}
	engine := newTestServer(job).routes()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stop", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, job.stopped)
}

func TestStopFinishedJob(t *testing.T) {
	job := &fakeJob{status: supervisor.Status{State: supervisor.StateCompleted}}
	engine := newTestServer(job).routes()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stop", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, job.stopped)
}

func TestStopWrongMethod(t *testing.T) {
	job := &fakeJob{status: supervisor.Status{State: supervisor.StateRunning}}
	engine := newTestServer(job).routes()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stop", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, job.stopped)
}

func TestRuns(t *testing.T) {
	runs := &fakeRuns{}
	srv := newTestServer(&fakeJob{})
	srv.runs = runs
	engine := srv.routes()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, runs.lastLimit)
	var ans runsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ans))
	require.Len(t, ans.Runs, 1)
	assert.Equal(t, tracking.StatusCompleted, ans.Runs[0].Status)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, runs.lastLimit)
}

func TestRunsDisabled(t *testing.T) {
	engine := newTestServer(&fakeJob{}).routes()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
