// Copyright 2022 gorse Project Authors
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

package knn

import (
	"context"
	"time"

	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/common/heap"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Neighbor is a similar entity.
type Neighbor struct {
	Id         string
	Similarity float64
}

// NeighborModel finds similar entities on one axis and predicts ratings from them.
type NeighborModel struct {
	axis     Axis
	params   Params
	trainset *dataset.Trainset
	baseline *Baseline
	matrix   *SimilarityMatrix
}

// NewNeighborModel creates an unfitted model.
func NewNeighborModel(axis Axis, params Params) *NeighborModel {
	return &NeighborModel{axis: axis, params: params}
}

// Fit fits the baseline and the similarity matrix. The model is untouched on failure.
func (m *NeighborModel) Fit(ctx context.Context, trainset *dataset.Trainset, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	if err := m.params.Validate(); err != nil {
		return errors.Trace(err)
	}
	if trainset == nil || trainset.Count() == 0 {
		return errors.NotValidf("empty dataset")
	}
	log.Logger().Info("fit neighbor model",
		zap.Stringer("axis", m.axis),
		zap.Int("n_users", trainset.CountUsers()),
		zap.Int("n_items", trainset.CountItems()),
		zap.Int("n_ratings", trainset.Count()),
		zap.Int("min_support", m.params.MinSupport),
		zap.Float64("shrinkage", m.params.Shrinkage),
		zap.String("baseline", m.params.Baseline.Method),
		zap.Int("n_jobs", config.Jobs))
	start := time.Now()
	baseline, err := FitBaseline(trainset, m.params.Baseline)
	if err != nil {
		return errors.Trace(err)
	}
	matrix, err := FitSimilarity(ctx, trainset, m.axis, baseline, m.params, config)
	if err != nil {
		return errors.Trace(err)
	}
	m.trainset, m.baseline, m.matrix = trainset, baseline, matrix
	log.Logger().Info("fit neighbor model complete",
		zap.Stringer("axis", m.axis),
		zap.Int("n_pairs", matrix.CountPairs()),
		zap.String("fit_time", time.Since(start).String()))
	return nil
}

func (m *NeighborModel) Axis() Axis {
	return m.axis
}

func (m *NeighborModel) Params() Params {
	return m.params
}

func (m *NeighborModel) Trainset() *dataset.Trainset {
	return m.trainset
}

func (m *NeighborModel) Baseline() *Baseline {
	return m.baseline
}

func (m *NeighborModel) Matrix() *SimilarityMatrix {
	return m.matrix
}

// Index returns the index of entities on the axis.
func (m *NeighborModel) Index() *dataset.Index {
	return m.axis.index(m.trainset)
}

func (m *NeighborModel) fitted() error {
	if m.matrix == nil {
		return errors.NotYetAvailablef("%v model", m.axis)
	}
	return nil
}

// Neighbors returns at most k entities with a defined similarity to id, most similar
// first. Ties are broken by ascending raw id.
func (m *NeighborModel) Neighbors(id string, k int) ([]Neighbor, error) {
	if k < 1 {
		return nil, errors.NotValidf("k %v", k)
	}
	if err := m.fitted(); err != nil {
		return nil, errors.Trace(err)
	}
	index := m.Index()
	number, err := index.ToNumber(id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	filter := heap.NewTopKFilter(k, betterNeighbor)
	indices, values := m.matrix.Row(number)
	for i, neighbor := range indices {
		name, err := index.ToName(neighbor)
		if err != nil {
			return nil, errors.Trace(err)
		}
		filter.Push(Neighbor{Id: name, Similarity: values[i]})
	}
	return filter.PopAll(), nil
}

func betterNeighbor(a, b Neighbor) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.Id < b.Id
}

// Similarity returns the similarity between two entities and whether it is defined.
func (m *NeighborModel) Similarity(a, b string) (float64, bool, error) {
	if err := m.fitted(); err != nil {
		return 0, false, errors.Trace(err)
	}
	index := m.Index()
	x, err := index.ToNumber(a)
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	y, err := index.ToNumber(b)
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	sim, ok := m.matrix.Get(x, y)
	return sim, ok, nil
}

// Predict estimates the rating of a user for an item as the similarity weighted mean of
// the ratings given by the k most similar neighbors with positive similarity. It falls back
// to the global mean when fewer than min_k neighbors exist or either id is unknown. The
// second result reports whether the estimate came from neighbors.
func (m *NeighborModel) Predict(userId, itemId string) (float64, bool) {
	if m.fitted() != nil {
		return 0, false
	}
	fallback := m.clip(m.trainset.GlobalMean)
	userIndex, err := m.trainset.UserIndex.ToNumber(userId)
	if err != nil {
		return fallback, false
	}
	itemIndex, err := m.trainset.ItemIndex.ToNumber(itemId)
	if err != nil {
		return fallback, false
	}
	// x is compared with the entities that rated the pair's other side
	var x int32
	var candidates []dataset.Feedback
	if m.axis == UserAxis {
		x, candidates = userIndex, m.trainset.ItemFeedback[itemIndex]
	} else {
		x, candidates = itemIndex, m.trainset.UserFeedback[userIndex]
	}
	type scored struct {
		index  int32
		sim    float64
		rating float64
	}
	filter := heap.NewTopKFilter(m.params.K, func(a, b scored) bool {
		if a.sim != b.sim {
			return a.sim > b.sim
		}
		return a.index < b.index
	})
	for _, f := range candidates {
		if sim, ok := m.matrix.Get(x, f.Index); ok && sim > 0 {
			filter.Push(scored{index: f.Index, sim: sim, rating: f.Rating})
		}
	}
	neighbors := filter.PopAll()
	if len(neighbors) == 0 || len(neighbors) < m.params.MinK {
		return fallback, false
	}
	var sumSim, sumRating float64
	for _, n := range neighbors {
		sumSim += n.sim
		sumRating += n.sim * n.rating
	}
	return m.clip(sumRating / sumSim), true
}

func (m *NeighborModel) clip(x float64) float64 {
	return min(m.trainset.RatingMax, max(m.trainset.RatingMin, x))
}
