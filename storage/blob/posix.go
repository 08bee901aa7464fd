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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/juju/errors"
)

// POSIX keeps objects as files under a directory.
type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

func notFound(err error, name string) error {
	if os.IsNotExist(err) {
		return errors.NewNotFound(err, name)
	}
	return errors.Trace(err)
}

func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		return nil, notFound(err, name)
	}
	return f, nil
}

// Create writes into a temporary file which is renamed on Close, so readers never see a
// partial object.
func (p *POSIX) Create(_ context.Context, name string) (io.WriteCloser, error) {
	fullPath := filepath.Join(p.dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	file, err := os.CreateTemp(filepath.Dir(fullPath), "upload-*")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &posixWriter{File: file, path: fullPath}, nil
}

type posixWriter struct {
	*os.File
	path string
}

func (w *posixWriter) Close() error {
	if err := w.File.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(w.File.Name(), w.path))
}

func (p *POSIX) Stat(_ context.Context, name string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(p.dir, name))
	if err != nil {
		return time.Time{}, notFound(err, name)
	}
	return info.ModTime(), nil
}

func (p *POSIX) Remove(_ context.Context, name string) error {
	if err := os.Remove(filepath.Join(p.dir, name)); err != nil {
		return notFound(err, name)
	}
	return nil
}

func (p *POSIX) List(_ context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == p.dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(p.dir, path)
			if err != nil {
				return err
			}
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.Strings(names)
	return names, nil
}
