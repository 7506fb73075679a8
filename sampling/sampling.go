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

package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyInput  = errors.New("no samples to balance")
	ErrSingleClass = errors.New("at least two classes are required for balancing")
	ErrShape       = errors.New("features and labels differ in length")
)

// UnderSampler reduces the number of samples in majority classes
// to correct class imbalance.
type UnderSampler interface {
	Resample(x [][]float64, y []int) ([][]float64, []int, error)
}

// RandomUnderSampler randomly drops (without replacement) samples
// of all the non-minority classes so each class ends up with
// the same number of samples as the minority one. The minority
// class is kept as is. Output rows are grouped by class
// (in ascending order) and within a class they keep the original
// relative order.
type RandomUnderSampler struct {
	Seed uint64
}

func (s RandomUnderSampler) Resample(x [][]float64, y []int) ([][]float64, []int, error) {
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("%w: %d vs. %d", ErrShape, len(x), len(y))
	}
	if len(y) == 0 {
		return nil, nil, ErrEmptyInput
	}
	byClass := make(map[int][]int)
	for i, cls := range y {
		byClass[cls] = append(byClass[cls], i)
	}
	if len(byClass) < 2 {
		return nil, nil, ErrSingleClass
	}
	classes := make([]int, 0, len(byClass))
	minCount := len(y)
	for cls, idxs := range byClass {
		classes = append(classes, cls)
		minCount = min(minCount, len(idxs))
	}
	slices.Sort(classes)

	rnd := rand.New(rand.NewPCG(s.Seed, s.Seed))
	ansX := make([][]float64, 0, minCount*len(classes))
	ansY := make([]int, 0, minCount*len(classes))
	for _, cls := range classes {
		idxs := byClass[cls]
		if len(idxs) > minCount {
			perm := rnd.Perm(len(idxs))[:minCount]
			slices.Sort(perm)
			selected := make([]int, minCount)
			for i, p := range perm {
				selected[i] = idxs[p]
			}
			idxs = selected
		}
		for _, idx := range idxs {
			ansX = append(ansX, slices.Clone(x[idx]))
			ansY = append(ansY, cls)
		}
	}
	log.Debug().
		Int("origSize", len(y)).
		Int("balancedSize", len(ansY)).
		Int("numClasses", len(classes)).
		Msg("performed under-sampling")
	return ansX, ansY, nil
}
