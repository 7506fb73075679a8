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
	"math"
)

// Scorer calculates a quality metric from true and predicted labels.
// The positive class is always 1.
type Scorer func(truth, predicted []int) float64

func confusion(truth, predicted []int) (tp, fp, fn, tn int) {
	for i, t := range truth {
		p := predicted[i]
		switch {
		case t == 1 && p == 1:
			tp++
		case t != 1 && p == 1:
			fp++
		case t == 1 && p != 1:
			fn++
		default:
			tn++
		}
	}
	return
}

func Accuracy(truth, predicted []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	tp, _, _, tn := confusion(truth, predicted)
	return float64(tp+tn) / float64(len(truth))
}

// Precision returns 0 if nothing was predicted as positive.
func Precision(truth, predicted []int) float64 {
	tp, fp, _, _ := confusion(truth, predicted)
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

// Recall returns 0 if there are no positive examples.
func Recall(truth, predicted []int) float64 {
	tp, _, fn, _ := confusion(truth, predicted)
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

// ----------------------------

func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Std calculates population standard deviation.
func Std(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	mean := Mean(v)
	var sum2 float64
	for _, x := range v {
		sum2 += (x - mean) * (x - mean)
	}
	return math.Sqrt(sum2 / float64(len(v)))
}

func MinMax(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}
