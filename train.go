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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/refactoring-ai/refml/cnf"
	"github.com/refactoring-ai/refml/dataset"
	"github.com/refactoring-ai/refml/datasource"
	"github.com/refactoring-ai/refml/eval"
	"github.com/refactoring-ai/refml/qcache"
	"github.com/refactoring-ai/refml/queries"
	"github.com/refactoring-ai/refml/sampling"
	"github.com/refactoring-ai/refml/stats"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

type trainingSummary struct {
	Trained int
	Loaded  int
	Skipped []string
}

// pipeline binds together everything needed to process
// a list of refactoring types.
type pipeline struct {
	cache    *qcache.Cache
	trainer  *eval.Trainer
	report   io.Writer
	level    int
	features []string
	failFast bool

	// journal is optional
	journal *stats.Database
	runID   int64

	// onProgress is called after each processed refactoring type
	onProgress func(refactoring string)
}

func (p *pipeline) resolveRefactorings(ctx context.Context, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	data, err := p.cache.Query(ctx, queries.RefactoringTypes(p.level))
	if err != nil {
		return nil, fmt.Errorf("failed to list refactoring types: %w", err)
	}
	idx := data.ColumnIndex("refactoring")
	if idx < 0 {
		return nil, fmt.Errorf("failed to list refactoring types: %w", dataset.ErrNoSuchColumn)
	}
	ans := make([]string, 0, data.NumRows())
	for _, row := range data.Rows {
		ans = append(ans, row[idx])
	}
	return ans, nil
}

func (p *pipeline) processRefactoring(
	ctx context.Context,
	refactoring string,
	nonRefactored *dataset.Dataset,
) (*eval.Evaluation, error) {
	q, err := queries.RefactoringInstances(p.level, refactoring, p.features)
	if err != nil {
		return nil, err
	}
	data, err := p.cache.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get instances of %s: %w", refactoring, err)
	}
	_, ev, err := p.trainer.Run(ctx, refactoring, data, nonRefactored, p.report)
	if err != nil {
		return nil, err
	}
	if p.journal != nil {
		if _, err := p.journal.AddEvaluation(p.runID, ev); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func (p *pipeline) run(ctx context.Context, refactorings []string) (trainingSummary, error) {
	var summary trainingSummary
	q, err := queries.NonRefactoredInstances(p.level, p.features)
	if err != nil {
		return summary, err
	}
	nonRefactored, err := p.cache.Query(ctx, q)
	if err != nil {
		return summary, fmt.Errorf("failed to get non-refactored instances: %w", err)
	}
	log.Info().
		Str("numInstances", humanize.Comma(int64(nonRefactored.NumRows()))).
		Msg("loaded non-refactored instances")

	for _, refactoring := range refactorings {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		ev, err := p.processRefactoring(ctx, refactoring, nonRefactored)
		if p.onProgress != nil {
			p.onProgress(refactoring)
		}
		if err != nil {
			if eval.IsPreconditionError(err) && !p.failFast {
				log.Warn().Err(err).Str("refactoring", refactoring).Msg("skipping refactoring type")
				summary.Skipped = append(summary.Skipped, refactoring)
				continue
			}
			return summary, err
		}
		if ev.Loaded {
			summary.Loaded++

		} else {
			summary.Trained++
		}
	}
	return summary, nil
}

func runActionTrain(conf *cnf.Conf, failFast bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := datasource.Open(ctx, conf.DB)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDataSource)
	}
	defer src.Close()

	backend, cacheCloser, err := qcache.OpenBackend(ctx, conf.Cache)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenCache)
	}
	defer cacheCloser.Close()

	report, err := os.OpenFile(conf.Training.ReportPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenReport)
	}
	defer report.Close()

	level := conf.Training.Level
	if level == 0 {
		level = queries.LevelMethod
	}
	features := conf.Training.Features
	if len(features) == 0 {
		features = queries.DefaultMethodFeatures
	}

	newModel, store, err := getModelSetup(conf.Training)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorGeneralFailure)
	}

	p := &pipeline{
		cache: qcache.New(backend, src),
		trainer: &eval.Trainer{
			Sampler:   sampling.RandomUnderSampler{Seed: conf.Training.Seed},
			Store:     store,
			NewModel:  newModel,
			NumFolds:  conf.Training.NumFolds,
			NumJobs:   conf.Training.NumJobs,
			ContextID: conf.Training.ReportPath,
		},
		report:   report,
		level:    level,
		features: features,
		failFast: failFast,
	}

	if conf.Training.ResultsDBPath != "" {
		journal, err := stats.NewDatabase(conf.Training.ResultsDBPath)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorFailedToOpenResultsDB)
		}
		defer journal.Close()
		if err := journal.Init(); err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorFailedToOpenResultsDB)
		}
		p.runID, err = journal.CreateRun(conf.Training.ReportPath)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorFailedToOpenResultsDB)
		}
		p.journal = journal
	}

	refactorings, err := p.resolveRefactorings(ctx, conf.Training.Refactorings)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorQueryFailed)
	}
	bar := progressbar.Default(int64(len(refactorings)), "training models")
	p.onProgress = func(string) { bar.Add(1) }

	summary, err := p.run(ctx, refactorings)
	bar.Finish()
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorTrainingFailed)
	}
	for _, r := range summary.Skipped {
		color.New(warnColor).Fprintf(os.Stderr, "skipped: %s\n", r)
	}
	log.Info().
		Int("trained", summary.Trained).
		Int("loaded", summary.Loaded).
		Int("skipped", len(summary.Skipped)).
		Str("report", conf.Training.ReportPath).
		Msg("training finished")
}

func runActionQuery(conf *cnf.Conf, query, outPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := datasource.Open(ctx, conf.DB)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDataSource)
	}
	defer src.Close()

	backend, cacheCloser, err := qcache.OpenBackend(ctx, conf.Cache)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenCache)
	}
	defer cacheCloser.Close()

	data, err := qcache.New(backend, src).Query(ctx, query)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorQueryFailed)
	}
	log.Info().
		Str("key", qcache.Key(query)).
		Str("numRows", humanize.Comma(int64(data.NumRows()))).
		Msg("query finished")

	out := os.Stdout
	if outPath != "" {
		out, err = os.Create(outPath)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorGeneralFailure)
		}
		defer out.Close()
	}
	if err := dataset.WriteCSV(out, data); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorGeneralFailure)
	}
}
