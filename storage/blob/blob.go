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
	"net/url"
	"strings"
	"time"

	"github.com/gorse-io/bookrec/config"
	"github.com/juju/errors"
)

const (
	S3Prefix    = "s3://"
	GCSPrefix   = "gcs://"
	AzurePrefix = "azure://"
	FilePrefix  = "file://"
)

// Store keeps named binary objects such as trained snapshots.
type Store interface {
	// Open an object for reading. A missing object is a NotFound error.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create an object for writing. The object is complete once Close returns nil.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// Stat returns the last modification time of an object.
	Stat(ctx context.Context, name string) (time.Time, error)
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// Open a blob store. The scheme of cfg.URI selects the backend: s3://bucket/prefix,
// gcs://bucket/prefix, azure://container/prefix, and a local directory otherwise.
func Open(cfg config.BlobConfig) (Store, error) {
	uri := cfg.URI
	switch {
	case strings.HasPrefix(uri, S3Prefix):
		bucket, prefix, err := splitBucket(uri[len(S3Prefix):])
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(uri, GCSPrefix):
		bucket, prefix, err := splitBucket(uri[len(GCSPrefix):])
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewGCS(cfg.GCS, bucket, prefix)
	case strings.HasPrefix(uri, AzurePrefix):
		container, prefix, err := splitBucket(uri[len(AzurePrefix):])
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.HasPrefix(uri, FilePrefix):
		parsed, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewPOSIX(parsed.Path), nil
	case uri == "":
		return nil, errors.NotValidf("empty blob uri")
	default:
		return NewPOSIX(uri), nil
	}
}

func splitBucket(s string) (bucket, prefix string, err error) {
	bucket, prefix, _ = strings.Cut(s, "/")
	if bucket == "" {
		return "", "", errors.NotValidf("empty bucket in %q", s)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// pipeWriter streams writes to an uploader running in another goroutine. Close waits for
// the upload and returns its error.
type pipeWriter struct {
	*io.PipeWriter
	done chan error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan error, 1)}
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(<-w.done)
}
