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
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/refactoring-ai/refml/dataset"
	"github.com/refactoring-ai/refml/eval/modutils"
	"github.com/refactoring-ai/refml/sampling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTrainer struct {
	*Trainer
	store       *memStore
	numNewModel *atomic.Int32
}

func newTestTrainer() *testTrainer {
	store := newMemStore()
	var numNewModel atomic.Int32
	return &testTrainer{
		Trainer: &Trainer{
			Sampler: sampling.RandomUnderSampler{Seed: 42},
			Store:   store,
			NewModel: func() Classifier {
				numNewModel.Add(1)
				return &thresholdModel{}
			},
			NumFolds:  10,
			NumJobs:   2,
			ContextID: "out/results.txt",
		},
		store:       store,
		numNewModel: &numNewModel,
	}
}

func TestLabelAndSplit(t *testing.T) {
	data, err := labelAndSplit(methodMetrics(5, true), methodMetrics(12, false))
	require.NoError(t, err)
	assert.Equal(t, []string{"methodLoc", "methodCbo", "methodWmc"}, data.features)
	assert.Equal(t, 5, data.instances)
	require.Len(t, data.y, 17)
	require.Len(t, data.x, 17)
	for i, cls := range data.y {
		if i < 5 {
			assert.Equal(t, 1, cls)
			assert.GreaterOrEqual(t, data.x[i][0], 100.0)

		} else {
			assert.Equal(t, 0, cls)
			assert.Less(t, data.x[i][0], 100.0)
		}
	}
}

func TestRunTrainsAndReports(t *testing.T) {
	tr := newTestTrainer()
	var out bytes.Buffer
	model, ev, err := tr.Run(context.Background(), "Extract Method", methodMetrics(20, true), methodMetrics(100, false), &out)
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, int32(1), tr.numNewModel.Load())
	assert.Equal(t, 1, tr.store.numSaves)
	_, found, _ := tr.store.FindByKey(modutils.PersistenceKey(tr.ContextID, "Extract Method"))
	assert.True(t, found)

	assert.Equal(t, "Extract Method", ev.Refactoring)
	assert.Equal(t, 20, ev.Instances)
	assert.Equal(t, 40, ev.BalancedSize)
	assert.False(t, ev.Loaded)
	assert.Len(t, ev.Accuracy, 10)
	assert.Len(t, ev.Precision, 10)
	assert.Len(t, ev.Recall, 10)
	assert.Equal(t, 1.0, Mean(ev.Accuracy))
	require.Len(t, ev.Importances, 3)
	assert.Equal(t, "methodLoc", ev.Importances[0].Feature)

	assert.Equal(t, FormatReport(ev), out.String())
	assert.True(t, strings.HasPrefix(out.String(), "\n---\nExtract Method\nInstances: 20\n"))
}

func TestRunReusesStoredModel(t *testing.T) {
	tr := newTestTrainer()
	var out bytes.Buffer
	ctx := context.Background()
	first, _, err := tr.Run(ctx, "Extract Method", methodMetrics(20, true), methodMetrics(100, false), &out)
	require.NoError(t, err)
	second, ev, err := tr.Run(ctx, "Extract Method", methodMetrics(20, true), methodMetrics(100, false), &out)
	require.NoError(t, err)
	assert.True(t, ev.Loaded)
	assert.Equal(t, int32(1), tr.numNewModel.Load())
	assert.Equal(t, 1, tr.store.numSaves)
	for _, sample := range [][]float64{{0, 0, 0}, {0.4, 1, 1}, {0.6, 0, 0}, {1, 1, 1}} {
		p1, err := first.Predict(sample)
		require.NoError(t, err)
		p2, err := second.Predict(sample)
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	}
	// both blocks are kept
	assert.Equal(t, 2, strings.Count(out.String(), "Extract Method\nInstances"))
}

func TestRunEmptyRefactorings(t *testing.T) {
	tr := newTestTrainer()
	out := bytes.NewBufferString("keep me")
	_, _, err := tr.Run(context.Background(), "Extract Method", methodMetrics(0, true), methodMetrics(100, false), out)
	assert.ErrorIs(t, err, ErrNoRefactorings)
	assert.True(t, IsPreconditionError(err))
	assert.Equal(t, "keep me", out.String())
	assert.Equal(t, 0, tr.store.numSaves)
	assert.Equal(t, int32(0), tr.numNewModel.Load())
}

func TestRunColumnMismatch(t *testing.T) {
	tr := newTestTrainer()
	var out bytes.Buffer
	other := dataset.New("methodLoc", "methodCbo")
	other.AppendRow("1", "2")
	_, _, err := tr.Run(context.Background(), "Extract Method", methodMetrics(20, true), other, &out)
	assert.ErrorIs(t, err, ErrColumnMismatch)
	assert.Equal(t, 0, out.Len())

	// same width, different names
	renamed := dataset.New("methodLoc", "methodCbo", "methodRfc")
	renamed.AppendRow("1", "2", "3")
	_, _, err = tr.Run(context.Background(), "Extract Method", methodMetrics(20, true), renamed, &out)
	assert.ErrorIs(t, err, ErrColumnMismatch)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 0, tr.store.numSaves)
}

type brokenSampler struct{}

func (s brokenSampler) Resample(x [][]float64, y []int) ([][]float64, []int, error) {
	return x, y[:len(y)-1], nil
}

func TestRunBalancingMismatch(t *testing.T) {
	tr := newTestTrainer()
	tr.Sampler = brokenSampler{}
	var out bytes.Buffer
	_, _, err := tr.Run(context.Background(), "Extract Method", methodMetrics(20, true), methodMetrics(100, false), &out)
	assert.ErrorIs(t, err, ErrBalancing)
	assert.Equal(t, 0, out.Len())
}

func TestRunStoredModelWithDifferentSchema(t *testing.T) {
	tr := newTestTrainer()
	stored := &thresholdModel{numFeatures: 5}
	tr.store.models[modutils.PersistenceKey(tr.ContextID, "Extract Method")] = stored
	var out bytes.Buffer
	_, _, err := tr.Run(context.Background(), "Extract Method", methodMetrics(20, true), methodMetrics(100, false), &out)
	assert.ErrorIs(t, err, ErrFeatureShape)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, int32(0), tr.numNewModel.Load())
}

func TestRunNoNonRefactored(t *testing.T) {
	tr := newTestTrainer()
	var out bytes.Buffer
	_, _, err := tr.Run(context.Background(), "Extract Method", methodMetrics(20, true), methodMetrics(0, false), &out)
	assert.ErrorIs(t, err, sampling.ErrSingleClass)
	assert.True(t, IsPreconditionError(err))
	assert.Equal(t, 0, out.Len())
}
