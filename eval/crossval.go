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
	"fmt"
	"runtime"
	"slices"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// StratifiedKFold splits sample indices into k test folds so that
// each fold has approximately the same class distribution as
// the complete data. The split is deterministic (no shuffling):
// within each class, samples are assigned to folds in their
// original order. Returned folds contain sorted indices.
func StratifiedKFold(y []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: number of folds must be at least 2", ErrTooFewSamples)
	}
	if k > len(y) {
		return nil, fmt.Errorf("%w: cannot have %d folds with %d samples", ErrTooFewSamples, k, len(y))
	}
	classIdx := make(map[int][]int)
	for i, cls := range y {
		classIdx[cls] = append(classIdx[cls], i)
	}
	classes := make([]int, 0, len(classIdx))
	enoughMembers := false
	for cls, members := range classIdx {
		classes = append(classes, cls)
		if len(members) >= k {
			enoughMembers = true
		}
	}
	if !enoughMembers {
		return nil, fmt.Errorf("%w: %d folds is more than number of members in each class", ErrTooFewSamples, k)
	}
	slices.Sort(classes)

	// labels sorted by class; fold i gets every k-th of them
	sorted := make([]int, 0, len(y))
	for _, cls := range classes {
		sorted = append(sorted, classIdx[cls]...)
	}
	allocation := make([]map[int]int, k)
	for i := range k {
		allocation[i] = make(map[int]int)
		for j := i; j < len(sorted); j += k {
			allocation[i][y[sorted[j]]]++
		}
	}
	testFold := make([]int, len(y))
	for _, cls := range classes {
		members := classIdx[cls]
		pos := 0
		for i := range k {
			for range allocation[i][cls] {
				testFold[members[pos]] = i
				pos++
			}
		}
	}
	folds := make([][]int, k)
	for i, f := range testFold {
		folds[f] = append(folds[f], i)
	}
	return folds, nil
}

func selectRows(x [][]float64, y []int, idxs []int) ([][]float64, []int) {
	ansX := make([][]float64, len(idxs))
	ansY := make([]int, len(idxs))
	for i, idx := range idxs {
		ansX[i] = x[idx]
		ansY[i] = y[idx]
	}
	return ansX, ansY
}

func complement(n int, idxs []int) []int {
	excluded := make([]bool, n)
	for _, idx := range idxs {
		excluded[idx] = true
	}
	ans := make([]int, 0, n-len(idxs))
	for i := range n {
		if !excluded[i] {
			ans = append(ans, i)
		}
	}
	return ans
}

// CrossValidate estimates model quality using stratified k-fold
// cross-validation. For each fold, a fresh clone of the model is trained
// on the remaining folds and scored on the fold itself. Folds are processed
// in parallel, `numJobs` <= 0 means all available CPUs.
func CrossValidate(
	ctx context.Context,
	model Classifier,
	x [][]float64,
	y []int,
	k int,
	scorer Scorer,
	numJobs int,
) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: features and labels differ in length", ErrTooFewSamples)
	}
	folds, err := StratifiedKFold(y, k)
	if err != nil {
		return nil, err
	}
	if numJobs <= 0 {
		numJobs = runtime.NumCPU()
	}
	scores := make([]float64, k)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(numJobs)
	for i, testIdx := range folds {
		group.Go(func() error {
			trainX, trainY := selectRows(x, y, complement(len(y), testIdx))
			testX, testY := selectRows(x, y, testIdx)
			foldModel := model.Clone()
			if err := foldModel.Fit(gctx, trainX, trainY); err != nil {
				return fmt.Errorf("failed to train model for fold %d: %w", i, err)
			}
			predicted := make([]int, len(testX))
			for j, row := range testX {
				p, err := foldModel.Predict(row)
				if err != nil {
					return fmt.Errorf("failed to evaluate fold %d: %w", i, err)
				}
				predicted[j] = p
			}
			scores[i] = scorer(testY, predicted)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	log.Debug().Floats64("scores", scores).Msg("finished cross-validation")
	return scores, nil
}
