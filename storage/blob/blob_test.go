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
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/gorse-io/bookrec/config"
	jujuerrors "github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObject(t *testing.T, store Store, name, content string) {
	w, err := store.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readObject(t *testing.T, store Store, name string) string {
	r, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	// missing object
	_, err := store.Open(ctx, "snapshot.bin")
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotFound), err)
	_, err = store.Stat(ctx, "snapshot.bin")
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotFound), err)

	// create and read
	writeObject(t, store, "snapshot.bin", "hello")
	assert.Equal(t, "hello", readObject(t, store, "snapshot.bin"))
	modified, err := store.Stat(ctx, "snapshot.bin")
	assert.NoError(t, err)
	assert.False(t, modified.IsZero())

	// overwrite
	writeObject(t, store, "snapshot.bin", "world")
	assert.Equal(t, "world", readObject(t, store, "snapshot.bin"))

	names, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, names, "snapshot.bin")

	// remove
	assert.NoError(t, store.Remove(ctx, "snapshot.bin"))
	names, err = store.List(ctx)
	assert.NoError(t, err)
	assert.NotContains(t, names, "snapshot.bin")
}

func TestPOSIX(t *testing.T) {
	dir := t.TempDir()
	store := NewPOSIX(dir)
	testStore(t, store)

	// nested names create directories
	writeObject(t, store, "models/snapshot.bin", "nested")
	assert.FileExists(t, filepath.Join(dir, "models", "snapshot.bin"))
	names, err := store.List(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"models/snapshot.bin"}, names)

	// missing directory lists nothing
	names, err = NewPOSIX(filepath.Join(dir, "missing")).List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestPOSIX_StatChanges(t *testing.T) {
	store := NewPOSIX(t.TempDir())
	writeObject(t, store, "snapshot.bin", "a")
	first, err := store.Stat(context.Background(), "snapshot.bin")
	require.NoError(t, err)
	later := first.Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(store.dir, "snapshot.bin"), later, later))
	second, err := store.Stat(context.Background(), "snapshot.bin")
	require.NoError(t, err)
	assert.True(t, second.After(first))
}

func TestGCS(t *testing.T) {
	server := fakestorage.NewServer(nil)
	defer server.Stop()
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: "bookrec-test"})
	testStore(t, NewGCSWithClient(server.Client(), "bookrec-test", "blob"))
}

func TestS3(t *testing.T) {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_ENDPOINT is not set")
	}
	store, err := NewS3(config.S3Config{
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
	}, "bookrec-test", "blob")
	require.NoError(t, err)
	ctx := context.Background()
	exists, err := store.BucketExists(ctx, store.bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, store.MakeBucket(ctx, store.bucket, minio.MakeBucketOptions{}))
	}
	testStore(t, store)
}

func TestAzureBlob(t *testing.T) {
	connectionString := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	if connectionString == "" {
		t.Skip("AZURE_STORAGE_CONNECTION_STRING is not set")
	}
	store, err := NewAzureBlob(config.AzureBlobConfig{ConnectionString: connectionString}, "bookrec-test", "blob")
	require.NoError(t, err)
	_, err = store.client.CreateContainer(context.Background(), store.container, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != string(bloberror.ContainerAlreadyExists) {
			require.NoError(t, err)
		}
	}
	testStore(t, store)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(config.BlobConfig{URI: dir})
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)

	store, err = Open(config.BlobConfig{URI: "file://" + dir})
	assert.NoError(t, err)
	assert.Equal(t, dir, store.(*POSIX).dir)

	store, err = Open(config.BlobConfig{URI: "s3://bucket/models/", S3: config.S3Config{Endpoint: "localhost:9000"}})
	assert.NoError(t, err)
	assert.Equal(t, "bucket", store.(*S3).bucket)
	assert.Equal(t, "models", store.(*S3).prefix)

	_, err = Open(config.BlobConfig{URI: "s3:///models"})
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid))
	_, err = Open(config.BlobConfig{URI: "azure://container"})
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid))
	_, err = Open(config.BlobConfig{})
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid))
}
