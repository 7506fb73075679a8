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
	"fmt"
	"io"
	"strings"
)

func formatScores(v []float64) string {
	items := make([]string, len(v))
	for i, x := range v {
		items[i] = fmt.Sprintf("%.2f", x)
	}
	return strings.Join(items, ", ")
}

func FormatFeatureImportances(items []FeatureImportance) string {
	var ans strings.Builder
	for _, item := range items {
		fmt.Fprintf(&ans, "%-33s: %-5.4f\n", item.Feature, item.Importance)
	}
	return ans.String()
}

func FormatPrecision(v []float64) string {
	lo, hi := MinMax(v)
	return fmt.Sprintf(
		"Precision scores: %s\n(Min and max: %.2f and %.2f)\nMean precision: %.2f",
		formatScores(v), lo, hi, Mean(v),
	)
}

func FormatRecall(v []float64) string {
	lo, hi := MinMax(v)
	return fmt.Sprintf(
		"Recall scores: %s\n(Min and max: %.2f and %.2f)\nMean recall: %.2f",
		formatScores(v), lo, hi, Mean(v),
	)
}

// FormatReport creates a text block summarizing the evaluation.
// The block is delimited by separator lines.
func FormatReport(ev *Evaluation) string {
	var ans strings.Builder
	ans.WriteString("\n---\n")
	ans.WriteString(ev.Refactoring + "\n")
	fmt.Fprintf(&ans, "Instances: %d\n", ev.Instances)
	fmt.Fprintf(&ans, "Accuracy: %0.2f (+/- %0.2f)\n", Mean(ev.Accuracy), Std(ev.Accuracy)*2)
	ans.WriteString("\nFeature Importances\n")
	ans.WriteString(FormatFeatureImportances(ev.Importances))
	ans.WriteString("\n")
	ans.WriteString(FormatPrecision(ev.Precision))
	ans.WriteString("\n")
	ans.WriteString(FormatRecall(ev.Recall))
	ans.WriteString("\n---\n")
	return ans.String()
}

// Reporter appends evaluation reports to a caller-owned stream.
// It never truncates, seeks or closes the stream.
type Reporter struct {
	Out io.Writer
}

// Append writes the whole report block in a single write call.
func (reporter *Reporter) Append(ev *Evaluation) error {
	if _, err := io.WriteString(reporter.Out, FormatReport(ev)); err != nil {
		return fmt.Errorf("failed to write report for %s: %w", ev.Refactoring, err)
	}
	return nil
}
