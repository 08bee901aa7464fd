// Copyright 2025 gorse Project Authors
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

package blob

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gorse-io/bookrec/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3 struct {
	*minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config, bucket, prefix string) (*S3, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{
		Client: minioClient,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3) s3Error(err error, name string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.NewNotFound(err, name)
	}
	return errors.Trace(err)
}

// Open an object in S3 for reading. The object is checked first so that a missing key
// surfaces here rather than on the first Read.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object, err := s.Client.GetObject(ctx, s.bucket, path.Join(s.prefix, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.s3Error(err, name)
	}
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		return nil, s.s3Error(err, name)
	}
	return object, nil
}

func (s *S3) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	fullPath := path.Join(s.prefix, name)
	return newPipeWriter(func(r io.Reader) error {
		_, err := s.Client.PutObject(ctx, s.bucket, fullPath, r, -1, minio.PutObjectOptions{})
		return err
	}), nil
}

func (s *S3) Stat(ctx context.Context, name string) (time.Time, error) {
	info, err := s.Client.StatObject(ctx, s.bucket, path.Join(s.prefix, name), minio.StatObjectOptions{})
	if err != nil {
		return time.Time{}, s.s3Error(err, name)
	}
	return info.LastModified, nil
}

func (s *S3) Remove(ctx context.Context, name string) error {
	err := s.Client.RemoveObject(ctx, s.bucket, path.Join(s.prefix, name), minio.RemoveObjectOptions{})
	return s.s3Error(err, name)
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	var names []string
	for object := range s.Client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, errors.Trace(object.Err)
		}
		names = append(names, strings.TrimPrefix(strings.TrimPrefix(object.Key, s.prefix), "/"))
	}
	sort.Strings(names)
	return names, nil
}
