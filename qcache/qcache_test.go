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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
	"github.com/refactoring-ai/refml/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	numCalls int
	closed   bool
	err      error

	// data replaces the default result if set
	data *dataset.Dataset
}

func (src *fakeSource) Query(ctx context.Context, sqlQuery string) (*dataset.Dataset, error) {
	src.numCalls++
	if src.err != nil {
		return nil, src.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.data != nil {
		return src.data.Clone(), nil
	}
	ans := dataset.New("query", "methodLoc", "note")
	ans.AppendRow(sqlQuery, "12", "")
	ans.AppendRow(sqlQuery, "3", "a \"quoted\", value")
	return ans, nil
}

func (src *fakeSource) Close() error {
	src.closed = true
	return nil
}

// ----

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*params.Bucket+"/"+*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

// ----

func backends(t *testing.T) map[string]Backend {
	bdb, err := OpenBadgerBackend(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })
	return map[string]Backend{
		"fs":     NewFSBackend(filepath.Join(t.TempDir(), "_cache")),
		"memory": NewMemoryBackend(),
		"badger": bdb,
		"s3": &S3Backend{
			client: &fakeS3{objects: make(map[string][]byte)},
			bucket: "refml",
			prefix: "cache",
		},
	}
}

func TestKey(t *testing.T) {
	// sha1("abc")
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Key("abc"))
	assert.Len(t, Key("SELECT * FROM yes"), 40)
	assert.NotEqual(t, Key("SELECT * FROM yes"), Key("SELECT * FROM yes "))
	assert.Equal(t, Key("SELECT 1"), Key("SELECT 1"))
}

func TestQueryIsIdempotent(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{}
			cache := New(backend, src)
			ctx := context.Background()
			first, err := cache.Query(ctx, "SELECT methodLoc FROM yes")
			require.NoError(t, err)
			second, err := cache.Query(ctx, "SELECT methodLoc FROM yes")
			require.NoError(t, err)
			assert.Equal(t, 1, src.numCalls)
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("cached result mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestDistinctQueriesDistinctEntries(t *testing.T) {
	src := &fakeSource{}
	backend := NewMemoryBackend()
	cache := New(backend, src)
	ctx := context.Background()
	_, err := cache.Query(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = cache.Query(ctx, "SELECT 2")
	require.NoError(t, err)
	assert.Equal(t, 2, src.numCalls)
	assert.Equal(t, 2, backend.Len())
}

func TestFSBackendLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "_cache")
	backend := NewFSBackend(dir)
	cache := New(backend, &fakeSource{})
	_, err := cache.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	path := filepath.Join(dir, Key("SELECT 1")+".csv")
	assert.Equal(t, path, backend.Path(Key("SELECT 1")))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "query,methodLoc,note\nSELECT 1,12,\nSELECT 1,3,\"a \"\"quoted\"\", value\"\n", string(content))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCachedResultSurvivesNewCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "_cache")
	_, err := New(NewFSBackend(dir), &fakeSource{}).Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	src := &fakeSource{}
	_, err = New(NewFSBackend(dir), src).Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 0, src.numCalls)
}

func TestInterruptedQueryClosesSource(t *testing.T) {
	src := &fakeSource{}
	backend := NewMemoryBackend()
	cache := New(backend, src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.closed)
	assert.Equal(t, 0, backend.Len())
}

func TestQueryErrorPropagates(t *testing.T) {
	queryErr := errors.New("table does not exist")
	src := &fakeSource{err: queryErr}
	backend := NewMemoryBackend()
	_, err := New(backend, src).Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, queryErr)
	assert.False(t, src.closed)
	assert.Equal(t, 0, backend.Len())
}

func TestCachedResultEqualsLiveResult(t *testing.T) {
	live := dataset.New("methodCbo")
	for _, v := range []string{"3", "", "5", "x\r\ny", ""} {
		require.NoError(t, live.AppendRow(v))
	}
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{data: live}
			ctx := context.Background()
			first, err := New(backend, src).Query(ctx, "SELECT methodCbo FROM yes")
			require.NoError(t, err)
			cached, err := New(backend, src).Query(ctx, "SELECT methodCbo FROM yes")
			require.NoError(t, err)
			assert.Equal(t, 1, src.numCalls)
			if diff := cmp.Diff(live, first); diff != "" {
				t.Errorf("live result mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(live, cached); diff != "" {
				t.Errorf("cached result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
