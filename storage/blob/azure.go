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
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/gorse-io/bookrec/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type AzureBlob struct {
	client    *azblob.Client
	container string
	prefix    string
}

func NewAzureBlob(cfg config.AzureBlobConfig, container string, prefix string) (*AzureBlob, error) {
	var (
		client *azblob.Client
		err    error
	)
	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		if cfg.AccountName == "" || cfg.AccountKey == "" {
			return nil, errors.NotValidf("azure blob credentials (account_name and account_key or connection_string)")
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		}
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, errors.Trace(err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &AzureBlob{
		client:    client,
		container: container,
		prefix:    strings.TrimPrefix(prefix, "/"),
	}, nil
}

func azureError(err error, name string) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return errors.NewNotFound(err, name)
	}
	return errors.Trace(err)
}

func (a *AzureBlob) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, path.Join(a.prefix, name), nil)
	if err != nil {
		return nil, azureError(err, name)
	}
	return resp.Body, nil
}

func (a *AzureBlob) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	fullPath := path.Join(a.prefix, name)
	return newPipeWriter(func(r io.Reader) error {
		_, err := a.client.UploadStream(ctx, a.container, fullPath, r, nil)
		return err
	}), nil
}

func (a *AzureBlob) Stat(ctx context.Context, name string) (time.Time, error) {
	props, err := a.client.ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(path.Join(a.prefix, name)).
		GetProperties(ctx, nil)
	if err != nil {
		return time.Time{}, azureError(err, name)
	}
	return lo.FromPtr(props.LastModified), nil
}

func (a *AzureBlob) Remove(ctx context.Context, name string) error {
	if _, err := a.client.DeleteBlob(ctx, a.container, path.Join(a.prefix, name), nil); err != nil {
		return azureError(err, name)
	}
	return nil
}

func (a *AzureBlob) List(ctx context.Context) ([]string, error) {
	var names []string
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: lo.EmptyableToPtr(a.prefix),
	})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, item := range resp.Segment.BlobItems {
			name := strings.TrimPrefix(strings.TrimPrefix(lo.FromPtr(item.Name), a.prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
