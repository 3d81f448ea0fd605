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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/czcorpus/cnc-gokit/collections"
	"github.com/czcorpus/yolotrain/apiserver"
	"github.com/czcorpus/yolotrain/cnf"
	"github.com/czcorpus/yolotrain/supervisor"
	"github.com/czcorpus/yolotrain/tracking"
	"github.com/czcorpus/yolotrain/weights"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

const (
	errColor = color.FgHiRed

	apiShutdownTimeout = 10 * time.Second
)

func runStatus(state supervisor.State) tracking.RunStatus {
	switch state {
	case supervisor.StateCompleted:
		return tracking.StatusCompleted
	case supervisor.StateCancelled:
		return tracking.StatusCancelled
	}
	return tracking.StatusFailed
}

func openTracking(conf *cnf.Conf) (*tracking.Database, error) {
	db, err := tracking.Open(conf.TrackingDBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runActionTrain(conf *cnf.Conf, fs *flag.FlagSet, tf trainFlags, datasetPath string) int {
	trainingConf, err := conf.TrainingConfig()
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorInvalidParams
	}
	trainingConf, err = tf.apply(fs, trainingConf)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorInvalidParams
	}

	if err := os.MkdirAll(conf.Layout().DataDir(), 0755); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorGeneralFailure
	}
	trackingDB, err := openTracking(conf)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorFailedToOpenTracking
	}
	defer trackingDB.Close()
	registry, err := weights.OpenRegistry(conf.WeightsRegistryPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorFailedToOpenRegistry
	}
	defer registry.Close()
	fetcher := weights.NewFetcher(conf.ModelHubURL, conf.JobName, registry)
	fetcher.ShowProgress = true

	sup := supervisor.New(
		conf.Layout(),
		supervisor.Options{
			TrainerPath:     conf.TrainerPath,
			NativeLibDir:    conf.NativeLibDir,
			PollInterval:    conf.PollInterval(),
			MetricsFileWait: conf.MetricsFileWait(),
			DrainTimeout:    conf.DrainTimeout(),
			QueueCapacity:   conf.MetricsQueueCapacity,
			LogMaxSizeMB:    conf.TrainerLogMaxSizeMB,
		},
		trackingDB,
		fetcher,
		&cliObserver{},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.APIEnabled() {
		srv := apiserver.New(conf, sup, trackingDB)
		srv.Start(ctx)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shut down control API server")
			}
		}()
	}

	runID, err := trackingDB.StartRun(conf.JobName, time.Now())
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorFailedToOpenTracking
	}
	log.Info().
		Str("runId", runID).
		Str("dataset", datasetPath).
		Str("model", trainingConf.Model.DisplayName()).
		Msg("starting training job")
	res, err := sup.Run(
		ctx,
		supervisor.Job{
			DatasetPath:  datasetPath,
			SourceFormat: *tf.sourceFormat,
			Params:       trainingConf,
		},
	)
	if ferr := trackingDB.FinishRun(runStatus(res.State), res.OutputDir, time.Now()); ferr != nil {
		log.Error().Err(ferr).Str("runId", runID).Msg("failed to store run status")
	}
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorTrainingFailed
	}
	if res.State == supervisor.StateCancelled {
		log.Warn().Str("runId", runID).Msg("training cancelled")
		return 0
	}
	fmt.Fprintf(os.Stderr, "trained model stored in %s\n", res.OutputDir)
	return 0
}

// printRunDetail writes params, metrics and artifacts of a single run
// as tab separated tables.
func printRunDetail(w io.Writer, trackingDB *tracking.Database, runID string) error {
	params, err := trackingDB.RunParams(runID)
	if err != nil {
		return err
	}
	sortedParams := collections.MapToEntriesSorted(
		params,
		func(a, b collections.MapEntry[string, string]) int {
			return strings.Compare(a.K, b.K)
		},
	)
	fmt.Fprintln(w, "PARAM\tVALUE")
	for _, p := range sortedParams {
		fmt.Fprintf(w, "%s\t%s\n", p.K, p.V)
	}
	fmt.Fprintln(w)

	values, err := trackingDB.RunMetrics(runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "STEP\tMETRIC\tVALUE")
	for _, v := range values {
		fmt.Fprintf(w, "%d\t%s\t%01.4f\n", v.Step, v.Name, v.Value)
	}
	fmt.Fprintln(w)

	artifacts, err := trackingDB.RunArtifacts(runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ARTIFACT")
	for _, a := range artifacts {
		fmt.Fprintln(w, a)
	}
	return nil
}

func runActionRuns(conf *cnf.Conf, limit int, runID string) int {
	trackingDB, err := openTracking(conf)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorFailedToOpenTracking
	}
	defer trackingDB.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	if runID != "" {
		if err := printRunDetail(tw, trackingDB, runID); err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			return exitErrorGeneralFailure
		}
		return 0
	}
	runs, err := trackingDB.ListRuns(limit)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		return exitErrorGeneralFailure
	}
	fmt.Fprintln(tw, "ID\tJOB\tSTATUS\tSTARTED\tDURATION\tOUTPUT")
	for _, run := range runs {
		var dur string
		if !run.Finished.IsZero() {
			dur = run.Finished.Sub(run.Started).String()
		}
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.JobName, run.Status, run.Started.Format(time.DateTime), dur, run.OutputDir,
		)
	}
	return 0
}
