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

package recommend

import (
	"context"
	"io"
	"time"

	"github.com/gorse-io/bookrec/base/encoding"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model/knn"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const snapshotMagic = "bookrec-snapshot-v1"

// Snapshot is an immutable trained state: the rating store and both neighbor models.
type Snapshot struct {
	Timestamp time.Time
	Store     *dataset.Store
	Trainset  *dataset.Trainset
	UserModel *knn.NeighborModel
	ItemModel *knn.NeighborModel
}

// Train fits the user model and the item model on the whole store.
func Train(ctx context.Context, store *dataset.Store, params knn.Params, config *knn.FitConfig) (*Snapshot, error) {
	if store == nil || store.Count() == 0 {
		return nil, errors.NotValidf("empty dataset")
	}
	trainset, err := dataset.NewTrainset(store)
	if err != nil {
		return nil, errors.Trace(err)
	}
	snapshot := &Snapshot{
		Timestamp: time.Now(),
		Store:     store,
		Trainset:  trainset,
		UserModel: knn.NewNeighborModel(knn.UserAxis, params),
		ItemModel: knn.NewNeighborModel(knn.ItemAxis, params),
	}
	for _, m := range []*knn.NeighborModel{snapshot.UserModel, snapshot.ItemModel} {
		start := time.Now()
		if err = m.Fit(ctx, trainset, config); err != nil {
			return nil, errors.Trace(err)
		}
		TrainSeconds.WithLabelValues(m.Axis().String()).Set(time.Since(start).Seconds())
		SimilarityPairs.WithLabelValues(m.Axis().String()).Set(float64(m.Matrix().CountPairs()))
	}
	log.Logger().Info("train snapshot complete",
		zap.Int("n_users", trainset.CountUsers()),
		zap.Int("n_items", trainset.CountItems()),
		zap.Int("n_ratings", trainset.Count()),
		zap.Time("timestamp", snapshot.Timestamp))
	return snapshot, nil
}

// Marshal writes the snapshot into a byte stream.
func (s *Snapshot) Marshal(w io.Writer) error {
	if err := encoding.WriteString(w, snapshotMagic); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteNumber(w, s.Timestamp.UnixNano()); err != nil {
		return errors.Trace(err)
	}
	// store
	records := s.Store.Records()
	if err := encoding.WriteNumber(w, int32(len(records))); err != nil {
		return errors.Trace(err)
	}
	for _, r := range records {
		for _, field := range []string{r.UserId, r.ItemId, r.Title, r.Author, r.ImageURL} {
			if err := encoding.WriteString(w, field); err != nil {
				return errors.Trace(err)
			}
		}
		if err := encoding.WriteNumber(w, r.Rating); err != nil {
			return errors.Trace(err)
		}
	}
	// indices
	if err := s.Trainset.UserIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := s.Trainset.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	// models
	if err := s.UserModel.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.ItemModel.Marshal(w))
}

// UnmarshalSnapshot reads a snapshot written by Marshal.
func UnmarshalSnapshot(r io.Reader) (*Snapshot, error) {
	magic, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if magic != snapshotMagic {
		return nil, errors.NotValidf("snapshot magic %q", magic)
	}
	timestamp, err := encoding.ReadNumber[int64](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	n, err := encoding.ReadNumber[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if n < 0 {
		return nil, errors.NotValidf("record count %v", n)
	}
	records := make([]dataset.RatingRecord, n)
	for i := range records {
		fields := make([]string, 5)
		for j := range fields {
			if fields[j], err = encoding.ReadString(r); err != nil {
				return nil, errors.Trace(err)
			}
		}
		records[i] = dataset.RatingRecord{
			UserId:   fields[0],
			ItemId:   fields[1],
			Title:    fields[2],
			Author:   fields[3],
			ImageURL: fields[4],
		}
		if records[i].Rating, err = encoding.ReadNumber[float64](r); err != nil {
			return nil, errors.Trace(err)
		}
	}
	store, err := dataset.NewStore(records)
	if err != nil {
		return nil, errors.Trace(err)
	}
	userIndex, err := dataset.UnmarshalIndex(r, "user")
	if err != nil {
		return nil, errors.Trace(err)
	}
	itemIndex, err := dataset.UnmarshalIndex(r, "item")
	if err != nil {
		return nil, errors.Trace(err)
	}
	trainset, err := dataset.NewTrainsetWithIndex(store, userIndex, itemIndex)
	if err != nil {
		return nil, errors.Trace(err)
	}
	userModel, err := knn.UnmarshalNeighborModel(r, trainset)
	if err != nil {
		return nil, errors.Trace(err)
	}
	itemModel, err := knn.UnmarshalNeighborModel(r, trainset)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if userModel.Axis() != knn.UserAxis || itemModel.Axis() != knn.ItemAxis {
		return nil, errors.NotValidf("snapshot model axes")
	}
	return &Snapshot{
		Timestamp: time.Unix(0, timestamp),
		Store:     store,
		Trainset:  trainset,
		UserModel: userModel,
		ItemModel: itemModel,
	}, nil
}
