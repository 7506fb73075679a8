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

// Package qcache provides a content-addressed cache of query results.
// A query is identified solely by a digest of its text, so a cached
// result is returned even if the underlying data have changed since.
package qcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/refactoring-ai/refml/dataset"
	"github.com/refactoring-ai/refml/datasource"
	"github.com/rs/zerolog/log"
)

// Backend stores datasets under query keys.
type Backend interface {

	// Get returns a stored dataset. The second value is false
	// in case nothing is stored under the key.
	Get(ctx context.Context, key string) (*dataset.Dataset, bool, error)

	Put(ctx context.Context, key string, data *dataset.Dataset) error
}

// Key returns a hex-encoded SHA-1 digest of the raw query text.
func Key(query string) string {
	sum := sha1.Sum([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Cache runs queries via a data source and stores their results
// so each distinct query text is executed at most once.
// There is no locking - concurrent misses of the same query
// are all executed and the last write wins.
type Cache struct {
	backend Backend
	source  datasource.Querier
}

// Query returns result of the query, either from the cache or by
// running it. In case the query is interrupted (the context is
// cancelled e.g. by SIGINT), the data source is closed, nothing is
// cached and the error is returned.
func (c *Cache) Query(ctx context.Context, query string) (*dataset.Dataset, error) {
	key := Key(query)
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached result %s: %w", key, err)
	}
	if ok {
		log.Debug().Str("key", key).Int("numRows", data.NumRows()).Msg("using cached query result")
		return data, nil
	}
	data, err = c.source.Query(ctx, query)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("query interrupted, closing data source")
			if cerr := c.source.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("failed to close data source")
			}
		}
		return nil, err
	}
	if err := c.backend.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to cache query result %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int("numRows", data.NumRows()).Msg("stored query result")
	return data, nil
}

func New(backend Backend, source datasource.Querier) *Cache {
	return &Cache{
		backend: backend,
		source:  source,
	}
}
