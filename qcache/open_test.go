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
	"path/filepath"
	"testing"

	"github.com/refactoring-ai/refml/cnf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFSBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "_cache")
	b, closer, err := OpenBackend(context.Background(), cnf.CacheConf{Backend: cnf.CacheBackendFS, Dir: dir})
	require.NoError(t, err)
	defer closer.Close()
	fsb, ok := b.(*FSBackend)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, Key("SELECT 1")+".csv"), fsb.Path(Key("SELECT 1")))
}

func TestOpenBadgerBackend(t *testing.T) {
	b, closer, err := OpenBackend(
		context.Background(),
		cnf.CacheConf{Backend: cnf.CacheBackendBadger, BadgerPath: filepath.Join(t.TempDir(), "badger")},
	)
	require.NoError(t, err)
	_, ok := b.(*BadgerBackend)
	assert.True(t, ok)
	assert.NoError(t, closer.Close())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, _, err := OpenBackend(context.Background(), cnf.CacheConf{Backend: "redis"})
	assert.Error(t, err)
}
