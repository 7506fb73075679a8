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

// Package queries builds SQL queries reading refactoring instances
// and non-refactored instances from the database filled by the data
// collector. All values are inlined so the resulting text fully
// identifies the query (which is required by the query cache).
package queries

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	TableRefactorings = "yes"
	TableStable       = "StableCommit"
)

const (
	LevelClass     = 1
	LevelMethod    = 2
	LevelVariable  = 3
	LevelAttribute = 4
)

// DefaultMethodFeatures lists method-level metrics stored
// by the data collector.
var DefaultMethodFeatures = []string{
	"methodCbo",
	"methodWmc",
	"methodRfc",
	"methodLoc",
	"methodReturnQty",
	"methodVariablesQty",
	"methodParametersQty",
	"methodInvocationsQty",
	"methodInvocationsLocalQty",
	"methodInvocationsIndirectLocalQty",
	"methodLoopQty",
	"methodComparisonsQty",
	"methodTryCatchQty",
	"methodParenthesizedExpsQty",
	"methodStringLiteralsQty",
	"methodNumbersQty",
	"methodAssignmentsQty",
	"methodMathOperationsQty",
	"methodMaxNestedBlocks",
	"methodAnonymousClassesQty",
	"methodSubClassesQty",
	"methodLambdasQty",
	"methodUniqueWordsQty",
}

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), "'", "''") + "'"
}

func columnList(features []string) (string, error) {
	if len(features) == 0 {
		return "", fmt.Errorf("no feature columns specified")
	}
	for _, f := range features {
		if !identRegexp.MatchString(f) {
			return "", fmt.Errorf("invalid feature column name %q", f)
		}
	}
	return strings.Join(features, ", "), nil
}

// RefactoringInstances returns a query selecting features
// of instances of a specific refactoring type.
func RefactoringInstances(level int, refactoring string, features []string) (string, error) {
	cols, err := columnList(features)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE refactoringType = %d AND refactoring = %s",
		cols, TableRefactorings, level, quoteLiteral(refactoring),
	), nil
}

// NonRefactoredInstances returns a query selecting features of
// instances which were not refactored for a long time.
func NonRefactoredInstances(level int, features []string) (string, error) {
	cols, err := columnList(features)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE level = %d",
		cols, TableStable, level,
	), nil
}

// RefactoringTypes returns a query listing all the refactoring
// types recorded for a specific level. The result has a single
// column `refactoring`.
func RefactoringTypes(level int) string {
	return fmt.Sprintf(
		"SELECT DISTINCT refactoring FROM %s WHERE refactoringType = %d ORDER BY refactoring",
		TableRefactorings, level,
	)
}
