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

package modutils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var nonAlnumRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// FormatRoughSize formats a number of rows in a compact form
func FormatRoughSize(value int64) string {
	if value < 1000 {
		return fmt.Sprintf("%d", value)
	}

	if value >= 1000000 {
		millions := float64(value) / 1000000.0
		return fmt.Sprintf("%.1fM", millions)
	}

	thousands := float64(value) / 1000.0
	return fmt.Sprintf("%.1fk", thousands)
}

// PersistenceKey derives a model name from an external context
// identifier (typically a results file path) and a refactoring
// type, e.g. ("out/results.txt", "Extract Method") produces
// "results_extract_method_55fb4d34". The trailing part is a digest
// of the raw refactoring name so names differing only in case
// or punctuation do not share a model.
func PersistenceKey(contextID, refactoring string) string {
	parts := make([]string, 0, 3)
	base := filepath.Base(contextID)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base != "" && base != "." && base != string(filepath.Separator) {
		parts = append(parts, base)
	}
	if ref := strings.Trim(nonAlnumRegexp.ReplaceAllString(strings.ToLower(refactoring), "_"), "_"); ref != "" {
		parts = append(parts, ref)
	}
	sum := sha1.Sum([]byte(refactoring))
	parts = append(parts, hex.EncodeToString(sum[:4]))
	return strings.Join(parts, "_")
}
