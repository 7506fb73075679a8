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

// Package baseline contains trivial classifiers used as a reference
// point when judging the quality of real models.
package baseline

import (
	"context"
	"fmt"

	"github.com/refactoring-ai/refml/eval"
)

// Constant is a classifier which always predicts the same class
// regardless of the input.
type Constant struct {
	Class int
}

func (m *Constant) Fit(ctx context.Context, x [][]float64, y []int) error {
	if len(x) != len(y) {
		return fmt.Errorf("cannot fit constant model: %d rows vs. %d labels", len(x), len(y))
	}
	return ctx.Err()
}

func (m *Constant) Predict(x []float64) (int, error) {
	return m.Class, nil
}

func (m *Constant) Clone() eval.Classifier {
	return &Constant{Class: m.Class}
}

func (m *Constant) GetInfo() string {
	return fmt.Sprintf("Constant classifier model (always %d)", m.Class)
}

// ----

// Majority predicts the most frequent class of its training data.
// In case of a tie, the lower class wins.
type Majority struct {
	class   int
	trained bool
}

func (m *Majority) Fit(ctx context.Context, x [][]float64, y []int) error {
	if len(y) == 0 {
		return fmt.Errorf("cannot fit majority model: no training data")
	}
	if len(x) != len(y) {
		return fmt.Errorf("cannot fit majority model: %d rows vs. %d labels", len(x), len(y))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	counts := make(map[int]int)
	for _, v := range y {
		counts[v]++
	}
	best, bestCount := 0, -1
	for class, cnt := range counts {
		if cnt > bestCount || cnt == bestCount && class < best {
			best, bestCount = class, cnt
		}
	}
	m.class = best
	m.trained = true
	return nil
}

func (m *Majority) Predict(x []float64) (int, error) {
	if !m.trained {
		return 0, fmt.Errorf("majority model not trained")
	}
	return m.class, nil
}

func (m *Majority) Clone() eval.Classifier {
	return &Majority{}
}

func (m *Majority) GetInfo() string {
	if !m.trained {
		return "Majority class model (untrained)"
	}
	return fmt.Sprintf("Majority class model (class %d)", m.class)
}
