// Copyright 2025 The refml Authors
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
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/refactoring-ai/refml/cnf"
	"github.com/refactoring-ai/refml/qcache"
	"github.com/rs/zerolog/log"
)

const (
	actionTrain    = "train"
	actionQuery    = "query"
	actionCacheKey = "cache-key"
	actionVersion  = "version"
	actionHelp     = "help"

	errColor  = color.FgHiRed
	warnColor = color.FgYellow
)

const (
	exitErrorGeneralFailure = iota + 1
	exitErrorFailedToOpenDataSource
	exitErrorFailedToOpenCache
	exitErrorFailedToOpenReport
	exitErrorFailedToOpenResultsDB
	exitErrorTrainingFailed
	exitErrorQueryFailed
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
	fmt.Fprintf(os.Stderr, "REFML - refactoring recommendation models\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\ttrain and evaluate models for refactoring types\n", actionTrain)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun (or load a cached) query and print its result\n", actionQuery)
	fmt.Fprintf(os.Stderr, "\t%s\t\tprint the cache key of a query\n", actionCacheKey)
	fmt.Fprintf(os.Stderr, "\nUse `refml help ACTION` for information about a specific action\n\n")
}

func setup(confPath string) *cnf.Conf {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}
	if confPath == "" {
		confPath = cnf.DefaultConfigFile
	}
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	if err := cnf.ValidateAndDefaults(conf); err != nil {
		log.Fatal().Err(err).Str("path", conf.SrcPath()).Msg("invalid configuration")
	}
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func runActionVersion(ver VersionInfo) {
	fmt.Fprintf(os.Stderr, "refml %s\nbuild date: %s\nlast commit: %s\n", ver.Version, ver.BuildDate, ver.GitCommit)
}

func runActionCacheKey(queries []string) {
	for _, q := range queries {
		fmt.Println(qcache.Key(q))
	}
}

// splitList parses a comma separated list of values
func splitList(v string) []string {
	if v == "" {
		return []string{}
	}
	items := strings.Split(v, ",")
	ans := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			ans = append(ans, item)
		}
	}
	return ans
}

func main() {
	version := VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdTrain := flag.NewFlagSet(actionTrain, flag.ExitOnError)
	trainConfPath := cmdTrain.String("config", cnf.DefaultConfigFile, "path to a configuration file (.ini, .toml or .json)")
	trainFailFast := cmdTrain.Bool("fail-fast", false, "stop on the first refactoring type with invalid data instead of skipping it")
	trainRefactorings := cmdTrain.String("refactorings", "", "a comma separated list of refactoring types overriding the configured ones")
	trainModel := cmdTrain.String("model", "", "classifier type (rf, majority, constant) overriding the configured one")
	cmdTrain.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options]\n\t",
			filepath.Base(os.Args[0]), actionTrain)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdTrain.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nTrain (or load) a model for each refactoring type, evaluate it and append results to the report\n")
	}

	cmdQuery := flag.NewFlagSet(actionQuery, flag.ExitOnError)
	queryConfPath := cmdQuery.String("config", cnf.DefaultConfigFile, "path to a configuration file (.ini, .toml or .json)")
	queryOutPath := cmdQuery.String("out", "", "write the result as CSV to a file (stdout if empty)")
	cmdQuery.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] SQL\n\t",
			filepath.Base(os.Args[0]), actionQuery)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdQuery.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun a query through the query cache and print the result as CSV\n")
	}

	cmdCacheKey := flag.NewFlagSet(actionCacheKey, flag.ExitOnError)
	cmdCacheKey.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s SQL [SQL...]\n",
			filepath.Base(os.Args[0]), actionCacheKey)
	}

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)
	cmdVersion.Usage = func() {
		cmdVersion.PrintDefaults()
	}

	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)

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
		switch subj {
		case actionTrain:
			cmdTrain.Usage()
		case actionQuery:
			cmdQuery.Usage()
		case actionCacheKey:
			cmdCacheKey.Usage()
		default:
			topLevelUsage()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		runActionVersion(version)
	case actionCacheKey:
		cmdCacheKey.Parse(os.Args[2:])
		if cmdCacheKey.NArg() == 0 {
			cmdCacheKey.Usage()
			os.Exit(exitErrorGeneralFailure)
		}
		runActionCacheKey(cmdCacheKey.Args())
	case actionQuery:
		cmdQuery.Parse(os.Args[2:])
		if cmdQuery.NArg() != 1 {
			cmdQuery.Usage()
			os.Exit(exitErrorGeneralFailure)
		}
		conf := setup(*queryConfPath)
		runActionQuery(conf, cmdQuery.Arg(0), *queryOutPath)
	case actionTrain:
		cmdTrain.Parse(os.Args[2:])
		conf := setup(*trainConfPath)
		if v := splitList(*trainRefactorings); len(v) > 0 {
			conf.Training.Refactorings = v
		}
		if *trainModel != "" {
			conf.Training.Model = *trainModel
		}
		runActionTrain(conf, *trainFailFast)
	default:
		color.New(errColor).Fprintln(os.Stderr, "Unknown action, please use 'help' to get more information")
		os.Exit(exitErrorGeneralFailure)
	}
}
