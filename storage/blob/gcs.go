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
	stderrors "errors"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/bookrec/config"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(cfg config.GCSConfig, bucket, prefix string) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewGCSWithClient(client, bucket, prefix), nil
}

func NewGCSWithClient(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name))
}

func gcsError(err error, name string) error {
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return errors.NewNotFound(err, name)
	}
	return errors.Trace(err)
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.object(name).NewReader(ctx)
	if err != nil {
		return nil, gcsError(err, name)
	}
	return r, nil
}

func (g *GCS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return g.object(name).NewWriter(ctx), nil
}

func (g *GCS) Stat(ctx context.Context, name string) (time.Time, error) {
	attrs, err := g.object(name).Attrs(ctx)
	if err != nil {
		return time.Time{}, gcsError(err, name)
	}
	return attrs.Updated, nil
}

func (g *GCS) Remove(ctx context.Context, name string) error {
	if err := g.object(name).Delete(ctx); err != nil {
		return gcsError(err, name)
	}
	return nil
}

func (g *GCS) List(ctx context.Context) ([]string, error) {
	var names []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: g.prefix,
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, strings.TrimPrefix(strings.TrimPrefix(attrs.Name, g.prefix), "/"))
	}
	sort.Strings(names)
	return names, nil
}
