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
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/yolotrain/cnf"
)

const (
	actionTrain   = "train"
	actionRuns    = "runs"
	actionVersion = "version"
	actionHelp    = "help"

	dfltRunsListLimit = 20
)

const (
	exitErrorGeneralFailure = iota + 1
	exitErrorInvalidParams
	exitErrorFailedToOpenTracking
	exitErrorFailedToOpenRegistry
	exitErrorTrainingFailed
)

var (
	version   string
	buildDate string
	gitCommit string
)

// VersionInfo provides a detailed information about the actual build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

func topLevelUsage() {
	fmt.Fprintf(os.Stderr, "YOLOTRAIN - an object detection training job runner\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tprepare a dataset and run a training job\n", actionTrain)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tlist recent training runs\n", actionRuns)
	fmt.Fprintf(os.Stderr, "\nUse `yolotrain help ACTION` for information about a specific action\n\n")
}

func setup(confPath string) *cnf.Conf {
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	cnf.ValidateAndDefaults(conf)
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func runActionVersion(ver VersionInfo) {
	fmt.Fprintln(os.Stderr, "yolotrain version: ", ver)
}

func main() {
	version := VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdTrain := flag.NewFlagSet(actionTrain, flag.ExitOnError)
	trainOpts := registerTrainFlags(cmdTrain)
	cmdTrain.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json dataset.json\n\t",
			filepath.Base(os.Args[0]), actionTrain)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdTrain.PrintDefaults()
		fmt.Fprintf(
			os.Stderr,
			"\nConvert the dataset, generate trainer config and supervise the trainer until it finishes.\n"+
				"Options which are set override the `training` section of the config.\n",
		)
	}

	cmdRuns := flag.NewFlagSet(actionRuns, flag.ExitOnError)
	runsLimit := cmdRuns.Int("limit", dfltRunsListLimit, "max. number of listed runs")
	runsRunID := cmdRuns.String("run", "", "if set, then metrics of the run are printed")
	cmdRuns.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionRuns)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdRuns.PrintDefaults()
	}

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)
	cmdVersion.Usage = func() {
		cmdVersion.PrintDefaults()
	}

	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)
	cmdHelp.Usage = func() {
		cmdVersion.PrintDefaults()
	}

	action := actionHelp
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case actionHelp:
		var subj string
		if len(os.Args) > 2 {
			cmdHelp.Parse(os.Args[2:])
			subj = cmdHelp.Arg(0)
		}
		if subj == "" {
			topLevelUsage()
			return
		}
		switch subj {
		case actionTrain:
			cmdTrain.Usage()
		case actionRuns:
			cmdRuns.Usage()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		runActionVersion(version)
	case actionTrain:
		cmdTrain.Parse(os.Args[2:])
		if cmdTrain.NArg() < 2 {
			cmdTrain.Usage()
			os.Exit(exitErrorInvalidParams)
		}
		conf := setup(cmdTrain.Arg(0))
		os.Exit(runActionTrain(conf, cmdTrain, trainOpts, cmdTrain.Arg(1)))
	case actionRuns:
		cmdRuns.Parse(os.Args[2:])
		conf := setup(cmdRuns.Arg(0))
		os.Exit(runActionRuns(conf, *runsLimit, *runsRunID))
	default:
		fmt.Fprintf(os.Stderr, "Unknown action, please use 'help' to get more information")
		os.Exit(exitErrorGeneralFailure)
	}
}
