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

package modelstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/refactoring-ai/refml/eval"
	"github.com/refactoring-ai/refml/eval/rf"
	"github.com/rs/zerolog/log"
)

const FileSuffix = ".rf.json"

// FSStore keeps Random Forest models as JSON files in a directory.
// A stored model is returned as is - there is no check whether it
// matches the data it is going to be used with.
type FSStore struct {
	dir string
}

func (store *FSStore) Path(key string) string {
	return filepath.Join(store.dir, key+FileSuffix)
}

func (store *FSStore) FindByKey(key string) (eval.Classifier, bool, error) {
	path := store.Path(key)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil

	} else if err != nil {
		return nil, false, err
	}
	model, err := rf.LoadFromFile(path)
	if err != nil {
		return nil, false, err
	}
	return model, true, nil
}

func (store *FSStore) Save(key string, model eval.Classifier) error {
	rfModel, ok := model.(*rf.Model)
	if !ok {
		return fmt.Errorf("cannot persist model of type %T", model)
	}
	if err := os.MkdirAll(store.dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := rfModel.SaveToFile(store.Path(key)); err != nil {
		return err
	}
	log.Debug().Str("path", store.Path(key)).Msg("saved model file")
	return nil
}

func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

// ----------------------------

// MemoryStore keeps models in memory.
type MemoryStore struct {
	mu       sync.Mutex
	models   map[string]eval.Classifier
	NumSaves int
}

func (store *MemoryStore) FindByKey(key string) (eval.Classifier, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	m, ok := store.models[key]
	return m, ok, nil
}

func (store *MemoryStore) Save(key string, model eval.Classifier) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.models[key] = model
	store.NumSaves++
	return nil
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]eval.Classifier)}
}
