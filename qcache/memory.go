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

package qcache

import (
	"context"
	"sync"

	"github.com/refactoring-ai/refml/dataset"
)

type MemoryBackend struct {
	mu    sync.Mutex
	items map[string]*dataset.Dataset
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (*dataset.Dataset, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.items[key]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (b *MemoryBackend) Put(ctx context.Context, key string, data *dataset.Dataset) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[key] = data.Clone()
	return nil
}

func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]*dataset.Dataset)}
}
