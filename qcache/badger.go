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
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/refactoring-ai/refml/dataset"
	"github.com/vmihailenco/msgpack/v5"
)

const resultPrefix byte = 0x00

func encodeKey(key string) []byte {
	ans := make([]byte, 1+len(key))
	ans[0] = resultPrefix
	copy(ans[1:], key)
	return ans
}

// BadgerBackend keeps msgpack-encoded results in an embedded
// Badger database.
type BadgerBackend struct {
	bdb *badger.DB
}

func (b *BadgerBackend) Get(ctx context.Context, key string) (*dataset.Dataset, bool, error) {
	var ans *dataset.Dataset
	err := b.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var data dataset.Dataset
			if err := msgpack.Unmarshal(val, &data); err != nil {
				return fmt.Errorf("failed to decode cached result: %w", err)
			}
			ans = &data
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil

	} else if err != nil {
		return nil, false, err
	}
	return ans, true, nil
}

func (b *BadgerBackend) Put(ctx context.Context, key string, data *dataset.Dataset) error {
	value, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode query result: %w", err)
	}
	return b.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(key), value)
	})
}

// Close closes the internal Badger database.
// It is possible to call the method on nil instance
// in which case it is a NOP.
func (b *BadgerBackend) Close() error {
	if b != nil && b.bdb != nil {
		return b.bdb.Close()
	}
	return nil
}

func OpenBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithValueLogFileSize(64 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	return &BadgerBackend{bdb: db}, nil
}
