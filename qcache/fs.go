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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/refactoring-ai/refml/dataset"
	"github.com/rs/zerolog/log"
)

const fsFileSuffix = ".csv"

// FSBackend stores each result as a CSV file named after
// the query key.
type FSBackend struct {
	dir string
}

func (b *FSBackend) Path(key string) string {
	return filepath.Join(b.dir, key+fsFileSuffix)
}

func (b *FSBackend) Get(ctx context.Context, key string) (*dataset.Dataset, bool, error) {
	f, err := os.Open(b.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil

	} else if err != nil {
		return nil, false, err
	}
	defer f.Close()
	data, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put writes data to a temporary file first and then renames
// it to the final path.
func (b *FSBackend) Put(ctx context.Context, key string, data *dataset.Dataset) error {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := dataset.WriteCSV(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpPath, b.Path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if info, err := os.Stat(b.Path(key)); err == nil {
		log.Debug().
			Str("path", b.Path(key)).
			Str("size", humanize.Bytes(uint64(info.Size()))).
			Msg("written cache file")
	}
	return nil
}

// NewFSBackend creates a backend storing files in `dir`.
// The directory is created on first write.
func NewFSBackend(dir string) *FSBackend {
	return &FSBackend{dir: dir}
}
