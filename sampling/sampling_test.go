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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced(numPos, numNeg int) ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < numPos; i++ {
		x = append(x, []float64{float64(i), 1})
		y = append(y, 1)
	}
	for i := 0; i < numNeg; i++ {
		x = append(x, []float64{float64(1000 + i), 0})
		y = append(y, 0)
	}
	return x, y
}

func countClasses(y []int) map[int]int {
	ans := make(map[int]int)
	for _, v := range y {
		ans[v]++
	}
	return ans
}

func TestResampleBalancesClasses(t *testing.T) {
	x, y := imbalanced(7, 93)
	bx, by, err := RandomUnderSampler{Seed: 42}.Resample(x, y)
	require.NoError(t, err)
	assert.Equal(t, len(bx), len(by))
	counts := countClasses(by)
	assert.Equal(t, 7, counts[0])
	assert.Equal(t, 7, counts[1])
	for i, row := range bx {
		// second feature encodes the class in the test data
		assert.Equal(t, float64(by[i]), row[1])
	}
}

func TestResampleKeepsMinority(t *testing.T) {
	x, y := imbalanced(5, 50)
	bx, by, err := RandomUnderSampler{Seed: 1}.Resample(x, y)
	require.NoError(t, err)
	var pos []float64
	for i, cls := range by {
		if cls == 1 {
			pos = append(pos, bx[i][0])
		}
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, pos)
}

func TestResampleIsDeterministic(t *testing.T) {
	x, y := imbalanced(10, 200)
	bx1, by1, err := RandomUnderSampler{Seed: 42}.Resample(x, y)
	require.NoError(t, err)
	bx2, by2, err := RandomUnderSampler{Seed: 42}.Resample(x, y)
	require.NoError(t, err)
	assert.Equal(t, bx1, bx2)
	assert.Equal(t, by1, by2)
}

func TestResampleDoesNotDuplicate(t *testing.T) {
	x, y := imbalanced(30, 40)
	bx, _, err := RandomUnderSampler{Seed: 3}.Resample(x, y)
	require.NoError(t, err)
	seen := make(map[float64]bool)
	for _, row := range bx {
		assert.False(t, seen[row[0]])
		seen[row[0]] = true
	}
}

func TestResampleErrors(t *testing.T) {
	_, _, err := RandomUnderSampler{}.Resample(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, _, err = RandomUnderSampler{}.Resample([][]float64{{1}}, []int{1, 0})
	assert.ErrorIs(t, err, ErrShape)
	x, y := imbalanced(3, 0)
	_, _, err = RandomUnderSampler{}.Resample(x, y)
	assert.ErrorIs(t, err, ErrSingleClass)
}
