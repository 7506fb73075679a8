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

package scaling

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotFitted = errors.New("scaler is not fitted")
	ErrNoData    = errors.New("no data to fit")
)

// MinMaxScaler transforms each feature linearly to the range [0, 1]
// based on minimum and maximum observed during fitting.
// Constant features are mapped to 0.
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

func (s *MinMaxScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return ErrNoData
	}
	width := len(x[0])
	s.Min = make([]float64, width)
	s.Max = make([]float64, width)
	for j := range width {
		s.Min[j] = math.Inf(1)
		s.Max[j] = math.Inf(-1)
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		for j, v := range row {
			s.Min[j] = math.Min(s.Min[j], v)
			s.Max[j] = math.Max(s.Max[j], v)
		}
	}
	return nil
}

// Transform returns a scaled copy of x. Values outside
// of the fitted range are not clipped.
func (s *MinMaxScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Min == nil {
		return nil, ErrNotFitted
	}
	ans := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.Min) {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), len(s.Min))
		}
		ans[i] = make([]float64, len(row))
		for j, v := range row {
			rng := s.Max[j] - s.Min[j]
			if rng == 0 {
				continue
			}
			ans[i][j] = (v - s.Min[j]) / rng
		}
	}
	return ans, nil
}

func (s *MinMaxScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
