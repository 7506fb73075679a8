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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorers(t *testing.T) {
	truth := []int{1, 1, 0, 0, 1}
	predicted := []int{1, 0, 1, 0, 1}
	assert.InDelta(t, 0.6, Accuracy(truth, predicted), 1e-12)
	assert.InDelta(t, 2.0/3.0, Precision(truth, predicted), 1e-12)
	assert.InDelta(t, 2.0/3.0, Recall(truth, predicted), 1e-12)
}

func TestScorersZeroDivision(t *testing.T) {
	assert.Equal(t, 0.0, Precision([]int{1, 0}, []int{0, 0}))
	assert.Equal(t, 0.0, Recall([]int{0, 0}, []int{1, 0}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestStats(t *testing.T) {
	v := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(v), 1e-12)
	assert.InDelta(t, 2.0, Std(v), 1e-12)
	lo, hi := MinMax(v)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
	assert.Equal(t, 0.0, Std(nil))
}
