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
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/unireq"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/czcorpus/yolotrain/cnf"
	"github.com/czcorpus/yolotrain/supervisor"
	"github.com/czcorpus/yolotrain/tracking"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// JobController is a training job the server reports on.
type JobController interface {
	Status() supervisor.Status
	Stop()
}

// RunLister provides a history of training runs.
type RunLister interface {
	ListRuns(limit int) ([]tracking.Run, error)
}

// -----

type Server struct {
	conf   *cnf.Conf
	job    JobController
	runs   RunLister
	server *http.Server
}

func (api *Server) handleStatus(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, api.job.Status())
}

func (api *Server) handleStop(ctx *gin.Context) {
	st := api.job.Status()
	if st.State.IsTerminal() {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("job already %s", st.State), http.StatusConflict,
		)
		return
	}
	log.Warn().Str("remoteAddr", ctx.ClientIP()).Msg("stop requested via API")
	api.job.Stop()
	uniresp.WriteJSONResponse(ctx.Writer, stopResponse{Stopping: true, State: st.State})
}

func (api *Server) handleRuns(ctx *gin.Context) {
	limit, ok := unireq.GetURLIntArgOrFail(ctx, "limit", dfltRunsLimit)
	if !ok {
		return
	}
	runs, err := api.runs.ListRuns(limit)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, runsResponse{Runs: runs})
}

func (api *Server) routes() *gin.Engine {
	if !api.conf.Logging.Level.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware())
	engine.Use(uniresp.AlwaysJSONContentType())
	engine.Use(corsMiddleware(api.conf))
	engine.NoMethod(uniresp.NoMethodHandler)
	engine.NoRoute(uniresp.NotFoundHandler)

	engine.GET("/status", api.handleStatus)
	engine.POST("/stop", api.handleStop)
	if api.runs != nil {
		engine.GET("/runs", api.handleRuns)
	}
	return engine
}

func (api *Server) Start(ctx context.Context) {
	log.Info().Msgf("starting to listen at %s:%d", api.conf.ListenAddress, api.conf.ListenPort)
	api.server = &http.Server{
		Handler:      api.routes(),
		Addr:         fmt.Sprintf("%s:%d", api.conf.ListenAddress, api.conf.ListenPort),
		WriteTimeout: time.Duration(api.conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(api.conf.ServerReadTimeoutSecs) * time.Second,
	}
	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("control API server error")
		}
	}()
}

func (api *Server) Stop(ctx context.Context) error {
	if api.server == nil {
		return nil
	}
	log.Warn().Msg("shutting down training control API server")
	return api.server.Shutdown(ctx)
}

// New creates a control API server. The runs argument is optional.
func New(conf *cnf.Conf, job JobController, runs RunLister) *Server {
	return &Server{conf: conf, job: job, runs: runs}
}
