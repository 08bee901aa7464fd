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

package server

import (
	"bufio"
	"context"
	"time"

	"github.com/gorse-io/bookrec/base"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/recommend"
	"github.com/gorse-io/bookrec/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SaveSnapshot writes a snapshot into the blob store.
func SaveSnapshot(ctx context.Context, store blob.Store, name string, snapshot *recommend.Snapshot) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	buf := bufio.NewWriter(w)
	if err = snapshot.Marshal(buf); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = buf.Flush(); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save snapshot", zap.String("name", name))
	return nil
}

// LoadSnapshot reads a snapshot and its modification time from the blob store.
func LoadSnapshot(ctx context.Context, store blob.Store, name string) (*recommend.Snapshot, time.Time, error) {
	modified, err := store.Stat(ctx, name)
	if err != nil {
		return nil, time.Time{}, errors.Trace(err)
	}
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, time.Time{}, errors.Trace(err)
	}
	defer r.Close()
	snapshot, err := recommend.UnmarshalSnapshot(bufio.NewReader(r))
	if err != nil {
		return nil, time.Time{}, errors.Annotatef(err, "load snapshot %v", name)
	}
	return snapshot, modified, nil
}

// Reloader swaps in the snapshot of the blob store whenever it changes.
type Reloader struct {
	server   *RestServer
	store    blob.Store
	name     string
	options  recommend.Options
	modified time.Time
}

func NewReloader(server *RestServer, store blob.Store, name string, options recommend.Options) *Reloader {
	return &Reloader{
		server:  server,
		store:   store,
		name:    name,
		options: options,
	}
}

// Publish serves a snapshot. The modification time marks the blob revision it came from.
func (r *Reloader) Publish(snapshot *recommend.Snapshot, modified time.Time) error {
	engine, err := recommend.NewEngine(snapshot, r.options)
	if err != nil {
		return errors.Trace(err)
	}
	version := r.server.Swap(engine)
	r.modified = modified
	log.Logger().Info("publish snapshot",
		zap.Int64("version", version),
		zap.Time("timestamp", snapshot.Timestamp),
		zap.Int("n_ratings", snapshot.Store.Count()))
	return nil
}

// Reload loads the snapshot if its blob changed since the last publish. It returns whether
// a new snapshot is served.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	modified, err := r.store.Stat(ctx, r.name)
	if err != nil {
		return false, errors.Trace(err)
	}
	if !modified.After(r.modified) {
		return false, nil
	}
	snapshot, modified, err := LoadSnapshot(ctx, r.store, r.name)
	if err != nil {
		return false, errors.Trace(err)
	}
	if err = r.Publish(snapshot, modified); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// Run reloads every period until the context is done. A failed reload keeps the current
// snapshot.
func (r *Reloader) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reloader) tick(ctx context.Context) {
	defer base.CheckPanic()
	reloaded, err := r.Reload(ctx)
	if err != nil {
		ReloadTotal.WithLabelValues("error").Inc()
		log.Logger().Error("failed to reload snapshot", zap.String("name", r.name), zap.Error(err))
	} else if reloaded {
		ReloadTotal.WithLabelValues("success").Inc()
	}
}
