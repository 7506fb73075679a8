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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// emptyRecord is how a record with a single empty field is written.
// The csv package would write it as an empty line which is skipped
// when reading.
const emptyRecord = "\"\"\n"

// escapeCRLF prepares cells for the csv package. The reader turns
// a CRLF ending any physical line into LF, also inside quoted cells.
// Prefixing every CRLF with another CR makes the reader produce
// the original text.
func escapeCRLF(rec []string) []string {
	var ans []string
	for i, cell := range rec {
		if !strings.Contains(cell, "\r\n") {
			continue
		}
		if ans == nil {
			ans = make([]string, len(rec))
			copy(ans, rec)
		}
		ans[i] = strings.ReplaceAll(cell, "\r\n", "\r\r\n")
	}
	if ans == nil {
		return rec
	}
	return ans
}

func writeRecord(w io.Writer, cw *csv.Writer, rec []string) error {
	if len(rec) == 1 && rec[0] == "" {
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		_, err := io.WriteString(w, emptyRecord)
		return err
	}
	return cw.Write(escapeCRLF(rec))
}

// WriteCSV writes the dataset as a delimited text with a header
// row followed by one line per record. ReadCSV restores the exact
// cell values.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := writeRecord(w, cw, ds.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range ds.Rows {
		if err := writeRecord(w, cw, row); err != nil {
			return fmt.Errorf("failed to write CSV rows: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// ReadCSV reads data written by WriteCSV. The first record is
// considered to be a header.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(), nil

	} else if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	ans := New(header...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break

		} else if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		ans.Rows = append(ans.Rows, rec)
	}
	return ans, nil
}
