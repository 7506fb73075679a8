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
	"sync/atomic"

	"github.com/refactoring-ai/refml/dataset"
)

// thresholdModel predicts 1 if the first feature is above the midpoint
// between class means observed during fitting.
type thresholdModel struct {
	threshold   float64
	numFeatures int
	numFits     *atomic.Int32
}

func (m *thresholdModel) Fit(ctx context.Context, x [][]float64, y []int) error {
	var sum [2]float64
	var cnt [2]int
	for i, row := range x {
		sum[y[i]] += row[0]
		cnt[y[i]]++
	}
	if cnt[0] == 0 || cnt[1] == 0 {
		return fmt.Errorf("both classes required")
	}
	m.threshold = (sum[0]/float64(cnt[0]) + sum[1]/float64(cnt[1])) / 2
	m.numFeatures = len(x[0])
	if m.numFits != nil {
		m.numFits.Add(1)
	}
	return nil
}

func (m *thresholdModel) Predict(x []float64) (int, error) {
	if len(x) != m.numFeatures {
		return 0, ErrFeatureShape
	}
	if x[0] > m.threshold {
		return 1, nil
	}
	return 0, nil
}

func (m *thresholdModel) Clone() Classifier {
	return &thresholdModel{numFits: m.numFits}
}

func (m *thresholdModel) GetInfo() string {
	return "threshold model"
}

func (m *thresholdModel) FeatureImportances() []float64 {
	ans := make([]float64, m.numFeatures)
	if m.numFeatures > 0 {
		ans[0] = 1
	}
	return ans
}

// ----

type memStore struct {
	models   map[string]Classifier
	numSaves int
}

func (s *memStore) FindByKey(key string) (Classifier, bool, error) {
	m, ok := s.models[key]
	return m, ok, nil
}

func (s *memStore) Save(key string, model Classifier) error {
	s.models[key] = model
	s.numSaves++
	return nil
}

func newMemStore() *memStore {
	return &memStore{models: make(map[string]Classifier)}
}

// ----

// methodMetrics creates a dataset where refactored methods are
// long (methodLoc >= 100) and non-refactored ones are short
func methodMetrics(n int, refactored bool) *dataset.Dataset {
	ans := dataset.New("methodLoc", "methodCbo", "methodWmc")
	for i := range n {
		loc := i % 40
		if refactored {
			loc += 100
		}
		ans.AppendRow(fmt.Sprint(loc), fmt.Sprint(i%7), fmt.Sprint(i%3))
	}
	return ans
}
