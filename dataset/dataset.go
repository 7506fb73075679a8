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

package dataset

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrNoSuchColumn   = errors.New("no such column")
	ErrColumnMismatch = errors.New("datasets have different columns")
	ErrRowWidth       = errors.New("row width does not match number of columns")
)

// Dataset is a table with ordered named columns. Cells are kept
// in their textual form (SQL NULL is an empty string) so the same
// data read from a database and from a cache file compare equal.
// Numeric interpretation is left to FloatMatrix and Floats.
type Dataset struct {
	Columns []string   `msgpack:"columns"`
	Rows    [][]string `msgpack:"rows"`
}

// New creates an empty dataset with the provided header.
func New(columns ...string) *Dataset {
	return &Dataset{
		Columns: slices.Clone(columns),
		Rows:    make([][]string, 0, 100),
	}
}

func (ds *Dataset) NumRows() int {
	if ds == nil {
		return 0
	}
	return len(ds.Rows)
}

func (ds *Dataset) NumCols() int {
	if ds == nil {
		return 0
	}
	return len(ds.Columns)
}

// AppendRow adds a row. The row is copied.
func (ds *Dataset) AppendRow(row ...string) error {
	if len(row) != len(ds.Columns) {
		return fmt.Errorf("failed to append row of width %d: %w", len(row), ErrRowWidth)
	}
	ds.Rows = append(ds.Rows, slices.Clone(row))
	return nil
}

// ColumnIndex returns position of a column or -1
func (ds *Dataset) ColumnIndex(name string) int {
	return slices.Index(ds.Columns, name)
}

// Clone creates a deep copy of the dataset.
func (ds *Dataset) Clone() *Dataset {
	ans := &Dataset{
		Columns: slices.Clone(ds.Columns),
		Rows:    make([][]string, len(ds.Rows)),
	}
	for i, row := range ds.Rows {
		ans.Rows[i] = slices.Clone(row)
	}
	return ans
}

// WithConstColumn returns a copy of the dataset with column `name`
// set to `value` in all rows. An existing column of the same name
// is overwritten in place, otherwise the column is appended.
func (ds *Dataset) WithConstColumn(name, value string) *Dataset {
	ans := ds.Clone()
	idx := ans.ColumnIndex(name)
	if idx >= 0 {
		for _, row := range ans.Rows {
			row[idx] = value
		}
		return ans
	}
	ans.Columns = append(ans.Columns, name)
	for i, row := range ans.Rows {
		ans.Rows[i] = append(row, value)
	}
	return ans
}

// Drop returns a copy of the dataset without the column `name`.
func (ds *Dataset) Drop(name string) (*Dataset, error) {
	idx := ds.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("failed to drop column %s: %w", name, ErrNoSuchColumn)
	}
	ans := &Dataset{
		Columns: slices.Delete(slices.Clone(ds.Columns), idx, idx+1),
		Rows:    make([][]string, len(ds.Rows)),
	}
	for i, row := range ds.Rows {
		ans.Rows[i] = slices.Delete(slices.Clone(row), idx, idx+1)
	}
	return ans, nil
}

// SameColumnSet tells whether both datasets contain the same
// column names (the order is not important).
func (ds *Dataset) SameColumnSet(other *Dataset) bool {
	if len(ds.Columns) != len(other.Columns) {
		return false
	}
	for _, c := range other.Columns {
		if ds.ColumnIndex(c) < 0 {
			return false
		}
	}
	return true
}

// Concat vertically joins datasets. The column order of the first
// dataset is used and rows of the other datasets are aligned
// by column names.
func Concat(first *Dataset, others ...*Dataset) (*Dataset, error) {
	ans := first.Clone()
	for _, other := range others {
		if !first.SameColumnSet(other) {
			return nil, fmt.Errorf(
				"failed to concatenate [%s] and [%s]: %w",
				strings.Join(first.Columns, ", "), strings.Join(other.Columns, ", "), ErrColumnMismatch,
			)
		}
		mapping := make([]int, len(first.Columns))
		for i, c := range first.Columns {
			mapping[i] = other.ColumnIndex(c)
		}
		for _, row := range other.Rows {
			newRow := make([]string, len(mapping))
			for i, src := range mapping {
				newRow[i] = row[src]
			}
			ans.Rows = append(ans.Rows, newRow)
		}
	}
	return ans, nil
}

// ParseFloat converts a cell to a number. Empty and non-numeric
// cells are 0, boolean literals are 1 and 0.
func ParseFloat(cell string) float64 {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "null", "nan":
		return 0
	case "true":
		return 1
	case "false":
		return 0
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0
	}
	return v
}

// FloatMatrix returns all the cells as a row-major matrix of numbers.
func (ds *Dataset) FloatMatrix() [][]float64 {
	ans := make([][]float64, len(ds.Rows))
	for i, row := range ds.Rows {
		ans[i] = make([]float64, len(row))
		for j, cell := range row {
			ans[i][j] = ParseFloat(cell)
		}
	}
	return ans
}

// Ints returns values of the column `name` as integers.
func (ds *Dataset) Ints(name string) ([]int, error) {
	idx := ds.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("failed to read column %s: %w", name, ErrNoSuchColumn)
	}
	ans := make([]int, len(ds.Rows))
	for i, row := range ds.Rows {
		ans[i] = int(ParseFloat(row[idx]))
	}
	return ans, nil
}
