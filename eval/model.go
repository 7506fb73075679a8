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
	"context"
	"errors"
)

const LabelColumn = "prediction"

var (
	ErrNoRefactorings = errors.New("no refactorings found")
	ErrColumnMismatch = errors.New("datasets have a different number of columns")
	ErrBalancing      = errors.New("undersampling did not produce matching features and labels")
	ErrFeatureShape   = errors.New("model does not match the feature set")
	ErrTooFewSamples  = errors.New("not enough samples for cross-validation")
)

// Classifier is a generalization of a binary classification model
// trained on a numeric feature matrix.
type Classifier interface {
	Fit(ctx context.Context, x [][]float64, y []int) error
	Predict(x []float64) (int, error)

	// Clone creates a new, untrained classifier with the same
	// hyper-parameters. It is used by cross-validation.
	Clone() Classifier

	GetInfo() string
}

// FeatureImportancer is implemented by models able to score
// contribution of individual features to their decisions.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// ModelStore persists trained models under keys derived from
// a refactoring type.
type ModelStore interface {
	FindByKey(key string) (Classifier, bool, error)
	Save(key string, model Classifier) error
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Evaluation contains results of training and evaluation for
// a single refactoring type.
type Evaluation struct {
	Refactoring string `json:"refactoring"`

	// Instances is the number of refactoring instances (i.e. positive
	// examples) before balancing.
	Instances int `json:"instances"`

	// BalancedSize is the number of rows used for training and evaluation
	BalancedSize int    `json:"balancedSize"`
	ModelKey     string `json:"modelKey"`
	ModelInfo    string `json:"modelInfo"`

	// Loaded is true if the model was not trained but loaded
	// from the model store.
	Loaded bool `json:"loaded"`

	Accuracy    []float64           `json:"accuracy"`
	Precision   []float64           `json:"precision"`
	Recall      []float64           `json:"recall"`
	Importances []FeatureImportance `json:"importances"`
}
