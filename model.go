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

package main

import (
	"errors"
	"fmt"

	"github.com/refactoring-ai/refml/cnf"
	"github.com/refactoring-ai/refml/eval"
	"github.com/refactoring-ai/refml/eval/baseline"
	"github.com/refactoring-ai/refml/eval/rf"
	"github.com/refactoring-ai/refml/modelstore"
)

const (
	modelTypeRF       = "rf"
	modelTypeMajority = "majority"
	modelTypeConstant = "constant"
)

var ErrNoSuchModel = errors.New("no such model")

// getModelSetup returns a constructor of untrained classifiers
// of the configured type along with a store for them.
// Baseline models are cheap to fit so they are never persisted.
func getModelSetup(conf cnf.TrainingConf) (func() eval.Classifier, eval.ModelStore, error) {
	switch conf.Model {
	case modelTypeRF, "":
		return func() eval.Classifier {
			return rf.NewModel(conf.NumTrees, conf.Seed, conf.NumJobs)
		}, modelstore.NewFSStore(conf.ModelDir), nil
	case modelTypeMajority:
		return func() eval.Classifier {
			return &baseline.Majority{}
		}, modelstore.NewMemoryStore(), nil
	case modelTypeConstant:
		return func() eval.Classifier {
			return &baseline.Constant{Class: 1}
		}, modelstore.NewMemoryStore(), nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrNoSuchModel, conf.Model)
}
