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

package eval

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/refactoring-ai/refml/dataset"
	"github.com/refactoring-ai/refml/eval/modutils"
	"github.com/refactoring-ai/refml/sampling"
	"github.com/refactoring-ai/refml/scaling"
	"github.com/rs/zerolog/log"
)

// Trainer builds (or loads) and evaluates a model for one refactoring
// type at a time.
type Trainer struct {
	Sampler sampling.UnderSampler
	Store   ModelStore

	// NewModel creates an untrained classifier in case there
	// is no stored model for a refactoring type.
	NewModel func() Classifier

	NumFolds int

	// NumJobs limits the number of folds evaluated in parallel.
	NumJobs int

	// ContextID identifies the current experiment (typically
	// the results file path) and is part of model persistence keys.
	ContextID string
}

type preparedData struct {
	features  []string
	instances int
	x         [][]float64
	y         []int
}

func labelAndSplit(refactorings, nonRefactored *dataset.Dataset) (*preparedData, error) {
	if refactorings.NumRows() == 0 {
		return nil, ErrNoRefactorings
	}
	pos := refactorings.WithConstColumn(LabelColumn, "1")
	neg := nonRefactored.WithConstColumn(LabelColumn, "0")
	if pos.NumCols() != neg.NumCols() {
		return nil, fmt.Errorf("%w: %d vs. %d", ErrColumnMismatch, pos.NumCols(), neg.NumCols())
	}
	merged, err := dataset.Concat(pos, neg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrColumnMismatch, err)
	}
	xData, err := merged.Drop(LabelColumn)
	if err != nil {
		return nil, err
	}
	y, err := merged.Ints(LabelColumn)
	if err != nil {
		return nil, err
	}
	return &preparedData{
		features:  xData.Columns,
		instances: refactorings.NumRows(),
		x:         xData.FloatMatrix(),
		y:         y,
	}, nil
}

func (tr *Trainer) acquireModel(ctx context.Context, key string, x [][]float64, y []int) (Classifier, bool, error) {
	model, found, err := tr.Store.FindByKey(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up model %s: %w", key, err)
	}
	if found {
		log.Info().Str("key", key).Msg("loading preexisting model")
		return model, true, nil
	}
	log.Info().Str("key", key).Str("trainingSize", modutils.FormatRoughSize(int64(len(x)))).Msg("building model")
	model = tr.NewModel()
	if err := model.Fit(ctx, x, y); err != nil {
		return nil, false, fmt.Errorf("failed to train model %s: %w", key, err)
	}
	if err := tr.Store.Save(key, model); err != nil {
		return nil, false, fmt.Errorf("failed to save model %s: %w", key, err)
	}
	return model, false, nil
}

func pairImportances(model Classifier, features []string) ([]FeatureImportance, error) {
	fi, ok := model.(FeatureImportancer)
	if !ok {
		return []FeatureImportance{}, nil
	}
	values := fi.FeatureImportances()
	if len(values) != len(features) {
		return nil, fmt.Errorf(
			"%w: model knows %d features, data have %d", ErrFeatureShape, len(values), len(features))
	}
	ans := make([]FeatureImportance, len(values))
	for i, v := range values {
		ans[i] = FeatureImportance{Feature: features[i], Importance: v}
	}
	return ans, nil
}

// Run labels refactoring instances (1) and non-refactored instances (0),
// balances and scales them, acquires a model (stored one or a newly
// trained one), evaluates it using cross-validation and appends
// a report to `out`. Nothing is written to `out` if any of the steps fails.
func (tr *Trainer) Run(
	ctx context.Context,
	refactoring string,
	refactorings, nonRefactored *dataset.Dataset,
	out io.Writer,
) (Classifier, *Evaluation, error) {
	data, err := labelAndSplit(refactorings, nonRefactored)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid input for %s: %w", refactoring, err)
	}

	balancedX, balancedY, err := tr.Sampler.Resample(data.x, data.y)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to balance data for %s: %w", refactoring, err)
	}
	if len(balancedX) != len(balancedY) {
		return nil, nil, fmt.Errorf("%w (%s)", ErrBalancing, refactoring)
	}

	var scaler scaling.MinMaxScaler
	scaledX, err := scaler.FitTransform(balancedX)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scale data for %s: %w", refactoring, err)
	}

	key := modutils.PersistenceKey(tr.ContextID, refactoring)
	model, loaded, err := tr.acquireModel(ctx, key, scaledX, balancedY)
	if err != nil {
		return nil, nil, err
	}

	ev := &Evaluation{
		Refactoring:  refactoring,
		Instances:    data.instances,
		BalancedSize: len(balancedY),
		ModelKey:     key,
		ModelInfo:    model.GetInfo(),
		Loaded:       loaded,
	}
	scorers := []struct {
		target *[]float64
		scorer Scorer
		name   string
	}{
		{&ev.Accuracy, Accuracy, "accuracy"},
		{&ev.Precision, Precision, "precision"},
		{&ev.Recall, Recall, "recall"},
	}
	for _, s := range scorers {
		scores, err := CrossValidate(ctx, model, scaledX, balancedY, tr.NumFolds, s.scorer, tr.NumJobs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to evaluate %s of %s: %w", s.name, refactoring, err)
		}
		*s.target = scores
	}
	ev.Importances, err = pairImportances(model, data.features)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate %s: %w", refactoring, err)
	}
	log.Info().
		Str("refactoring", refactoring).
		Int("instances", ev.Instances).
		Float64("accuracy", Mean(ev.Accuracy)).
		Float64("precision", Mean(ev.Precision)).
		Float64("recall", Mean(ev.Recall)).
		Bool("loaded", loaded).
		Msg("evaluated model")

	reporter := &Reporter{Out: out}
	if err := reporter.Append(ev); err != nil {
		return nil, nil, err
	}
	return model, ev, nil
}

// IsPreconditionError tells whether the error is caused by invalid
// input data of a single refactoring type (and thus it makes sense
// to continue with other types).
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrNoRefactorings) ||
		errors.Is(err, ErrColumnMismatch) ||
		errors.Is(err, ErrBalancing) ||
		errors.Is(err, sampling.ErrSingleClass) ||
		errors.Is(err, ErrTooFewSamples)
}
