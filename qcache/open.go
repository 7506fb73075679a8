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
	"fmt"
	"io"

	"github.com/refactoring-ai/refml/cnf"
	"github.com/rs/zerolog/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend instantiates a backend based on the cache configuration.
// The returned closer must be closed once the cache is no longer used.
func OpenBackend(ctx context.Context, conf cnf.CacheConf) (Backend, io.Closer, error) {
	switch conf.Backend {
	case cnf.CacheBackendFS, "":
		log.Debug().Str("dir", conf.Dir).Msg("using filesystem query cache")
		return NewFSBackend(conf.Dir), nopCloser{}, nil
	case cnf.CacheBackendBadger:
		log.Debug().Str("path", conf.BadgerPath).Msg("using badger query cache")
		b, err := OpenBadgerBackend(conf.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case cnf.CacheBackendS3:
		log.Debug().
			Str("bucket", conf.S3Bucket).
			Str("prefix", conf.S3Prefix).
			Msg("using S3 query cache")
		b, err := NewS3Backend(
			ctx, conf.S3Bucket, conf.S3Prefix,
			WithS3Profile(conf.S3Profile),
			WithS3Region(conf.S3Region),
		)
		if err != nil {
			return nil, nil, err
		}
		return b, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unsupported cache backend %s", conf.Backend)
}
