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
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/refactoring-ai/refml/dataset"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend stores results as CSV objects in an S3 bucket,
// using the same layout as FSBackend.
type S3Backend struct {
	client s3API
	bucket string
	prefix string
}

func (b *S3Backend) objectKey(key string) string {
	return path.Join(b.prefix, key+fsFileSuffix)
}

func (b *S3Backend) Get(ctx context.Context, key string) (*dataset.Dataset, bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, false, nil

	} else if err != nil {
		return nil, false, fmt.Errorf("failed to fetch s3://%s/%s: %w", b.bucket, b.objectKey(key), err)
	}
	defer out.Body.Close()
	data, err := dataset.ReadCSV(out.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *S3Backend) Put(ctx context.Context, key string, data *dataset.Dataset) error {
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, data); err != nil {
		return err
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to store s3://%s/%s: %w", b.bucket, b.objectKey(key), err)
	}
	return nil
}

type s3Options struct {
	profile string
	region  string
}

// S3Option customizes how AWS config is loaded. Without options,
// the standard environment and shared config chain is used.
type S3Option func(*s3Options)

func WithS3Profile(profile string) S3Option {
	return func(o *s3Options) { o.profile = profile }
}

func WithS3Region(region string) S3Option {
	return func(o *s3Options) { o.region = region }
}

func NewS3Backend(ctx context.Context, bucket, prefix string, opts ...S3Option) (*S3Backend, error) {
	var o s3Options
	for _, opt := range opts {
		opt(&o)
	}
	var loadOpts []func(*config.LoadOptions) error
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Backend{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}
