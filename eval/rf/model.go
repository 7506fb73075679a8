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

package rf

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"strings"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/refactoring-ai/refml/eval"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultNumTrees      = 100
	DefaultVoteThreshold = 0.5
)

type jsonizedRFModel struct {
	Forest            json.RawMessage `json:"forest"`
	NumTrees          int             `json:"numTrees"`
	Seed              uint64          `json:"seed"`
	VotingThreshold   float64         `json:"votingThreshold"`
	NumFeatures       int             `json:"numFeatures"`
	FeatureImportance []float64       `json:"featureImportance"`
	Comment           string          `json:"comment"`
}

// Model wraps a Random Forest binary classifier
type Model struct {
	Forest            *randomforest.Forest `json:"forest"`
	NumTrees          int                  `json:"numTrees"`
	Seed              uint64               `json:"seed"`
	VotingThreshold   float64              `json:"votingThreshold"`
	NumFeatures       int                  `json:"numFeatures"`
	FeatureImportance []float64            `json:"featureImportance"`
	Comment           string               `json:"comment"`

	// NumJobs limits parallelism of feature importance
	// calculation. It is not persisted.
	NumJobs int `json:"-"`

	// computeImportance is off for clones which serve only
	// as cross-validation fold models
	computeImportance bool
}

// NewModel creates a new untrained Random Forest model
func NewModel(numTrees int, seed uint64, numJobs int) *Model {
	if numTrees <= 0 {
		numTrees = DefaultNumTrees
	}
	return &Model{
		Forest:            &randomforest.Forest{},
		NumTrees:          numTrees,
		Seed:              seed,
		VotingThreshold:   DefaultVoteThreshold,
		NumJobs:           numJobs,
		computeImportance: true,
	}
}

func (m *Model) Clone() eval.Classifier {
	ans := NewModel(m.NumTrees, m.Seed, m.NumJobs)
	ans.VotingThreshold = m.VotingThreshold
	ans.computeImportance = false
	return ans
}

func (m *Model) GetInfo() string {
	return fmt.Sprintf("RF model, num. trees: %d, num. features: %d, seed: %d", m.NumTrees, m.NumFeatures, m.Seed)
}

func (m *Model) FeatureImportances() []float64 {
	return m.FeatureImportance
}

// Fit trains the forest. Trees are built concurrently by
// the forest library.
func (m *Model) Fit(ctx context.Context, x [][]float64, y []int) error {
	if len(x) == 0 {
		return fmt.Errorf("no training data provided")
	}
	if len(x) != len(y) {
		return fmt.Errorf("failed to train RF model - %d feature rows but %d labels", len(x), len(y))
	}
	if m.NumTrees <= 0 {
		return fmt.Errorf("failed to train RF model - invalid value of NumTrees")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.NumFeatures = len(x[0])
	m.Forest = &randomforest.Forest{}
	m.Forest.Data = randomforest.ForestData{
		X:     x,
		Class: y,
	}
	m.Forest.Train(m.NumTrees)
	m.FeatureImportance = nil
	if m.computeImportance {
		imp, err := m.permutationImportance(ctx, x, y)
		if err != nil {
			return err
		}
		m.FeatureImportance = imp
	}
	log.Debug().
		Int("numTrees", m.NumTrees).
		Int("dataSize", len(x)).
		Msg("trained RF model")
	return nil
}

func (m *Model) predict(x []float64) int {
	votes := m.Forest.Vote(x)
	if len(votes) > 1 && votes[1] > m.VotingThreshold {
		return 1
	}
	return 0
}

// Predict returns predicted class (0 or 1). It fails in case
// the feature vector does not match the training data.
func (m *Model) Predict(x []float64) (int, error) {
	if len(x) != m.NumFeatures {
		return 0, fmt.Errorf("%w: expected %d features, got %d", eval.ErrFeatureShape, m.NumFeatures, len(x))
	}
	return m.predict(x), nil
}

func (m *Model) accuracy(x [][]float64, y []int) float64 {
	predicted := make([]int, len(x))
	for i, row := range x {
		predicted[i] = m.predict(row)
	}
	return eval.Accuracy(y, predicted)
}

// permutationImportance measures how much the accuracy drops when
// values of a single feature are shuffled. The results are normalized
// to sum to 1. Shuffling is driven by the model seed so the values
// are reproducible for the same forest.
func (m *Model) permutationImportance(ctx context.Context, x [][]float64, y []int) ([]float64, error) {
	baseline := m.accuracy(x, y)
	ans := make([]float64, m.NumFeatures)
	numJobs := m.NumJobs
	if numJobs <= 0 {
		numJobs = runtime.NumCPU()
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(numJobs)
	for feat := range m.NumFeatures {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rnd := rand.New(rand.NewPCG(m.Seed, uint64(feat)))
			perm := rnd.Perm(len(x))
			shuffled := make([][]float64, len(x))
			for i, row := range x {
				newRow := make([]float64, len(row))
				copy(newRow, row)
				newRow[feat] = x[perm[i]][feat]
				shuffled[i] = newRow
			}
			ans[feat] = max(0, baseline-m.accuracy(shuffled, y))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	var total float64
	for _, v := range ans {
		total += v
	}
	if total > 0 {
		for i := range ans {
			ans[i] /= total
		}
	}
	return ans, nil
}

// SaveToFile saves the RF model to a file. A path ending with
// .gz produces a compressed file.
func (m *Model) SaveToFile(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to save RF model to a file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	if strings.HasSuffix(filePath, ".gz") {
		gzWriter := gzip.NewWriter(file)
		defer gzWriter.Close()
		writer = gzWriter
	}

	tmpModel := jsonizedRFModel{
		NumTrees:          m.NumTrees,
		Seed:              m.Seed,
		VotingThreshold:   m.VotingThreshold,
		NumFeatures:       m.NumFeatures,
		FeatureImportance: m.FeatureImportance,
		Comment:           m.Comment,
	}

	bytes, err := json.Marshal(&m.Forest)
	if err != nil {
		return fmt.Errorf("failed to save RF model to a file: %w", err)
	}

	tmpModel.Forest = bytes

	bytes, err = json.Marshal(tmpModel)
	if err != nil {
		return fmt.Errorf("failed to save RF model to a file: %w", err)
	}
	_, err = writer.Write(bytes)
	if err != nil {
		return fmt.Errorf("failed to save RF model to a file: %w", err)
	}
	return nil
}

// LoadFromFile loads a model stored by SaveToFile
func LoadFromFile(filePath string) (*Model, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(filePath, ".gz") || strings.HasSuffix(filePath, ".gzip") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	var tmpModel jsonizedRFModel
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to load Random Forest model from file: %w", err)
	}
	if err := json.Unmarshal(data, &tmpModel); err != nil {
		return nil, fmt.Errorf("failed to load Random Forest model from file: %w", err)
	}

	model := &Model{
		NumTrees:          tmpModel.NumTrees,
		Seed:              tmpModel.Seed,
		VotingThreshold:   tmpModel.VotingThreshold,
		NumFeatures:       tmpModel.NumFeatures,
		FeatureImportance: tmpModel.FeatureImportance,
		Comment:           tmpModel.Comment,
	}

	var forest randomforest.Forest
	if err := json.Unmarshal(tmpModel.Forest, &forest); err != nil {
		return nil, fmt.Errorf("failed to load Random Forest model from file: %w", err)
	}
	model.Forest = &forest
	if model.NumTrees == 0 {
		model.NumTrees = forest.NTrees
	}
	return model, nil
}
