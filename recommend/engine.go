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
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/bookrec/base"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model/knn"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	AggregationNone     = "none"
	AggregationWeighted = "weighted"
)

type Options struct {
	// NeighborFanout is the number of similar users consulted by user-based recommendation.
	NeighborFanout int
	// Aggregation merges contributions of different neighbors to the same item.
	Aggregation string
	// Filter is an optional boolean expression over book, score and similarity.
	Filter string
}

func DefaultOptions() Options {
	return Options{
		NeighborFanout: 5,
		Aggregation:    AggregationNone,
	}
}

type SimilarUser struct {
	UserId     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

type Recommendation struct {
	dataset.Book
	PredictedScore float64 `json:"predicted_score,omitempty"`
	Similarity     float64 `json:"similarity"`
	AverageRating  float64 `json:"avg_rating,omitempty"`
	// NeighborId is the similar user contributing the item.
	NeighborId   string `json:"similar_user,omitempty"`
	neighborRank int
}

type UserRecommendations struct {
	SimilarUsers    []SimilarUser    `json:"similar_users"`
	Recommendations []Recommendation `json:"recommendations"`
}

type ItemRecommendations struct {
	SourceBook      dataset.Book     `json:"source_book"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Engine turns neighbor models into ranked recommendations. It only reads shared state.
type Engine struct {
	snapshot  *Snapshot
	store     *dataset.Store
	userModel *knn.NeighborModel
	itemModel *knn.NeighborModel
	options   Options
	filter    *vm.Program
}

func NewEngine(snapshot *Snapshot, options Options) (*Engine, error) {
	if snapshot == nil {
		return nil, errors.NotYetAvailablef("model")
	}
	if options.NeighborFanout < 1 {
		return nil, errors.NotValidf("neighbor fanout %v", options.NeighborFanout)
	}
	switch options.Aggregation {
	case AggregationNone, AggregationWeighted:
	default:
		return nil, errors.NotSupportedf("aggregation %v", options.Aggregation)
	}
	engine := &Engine{
		snapshot:  snapshot,
		store:     snapshot.Store,
		userModel: snapshot.UserModel,
		itemModel: snapshot.ItemModel,
		options:   options,
	}
	if options.Filter != "" {
		var err error
		engine.filter, err = expr.Compile(options.Filter, expr.Env(filterEnv(Recommendation{})), expr.AsBool())
		if err != nil {
			return nil, errors.Annotate(err, "compile recommendation filter")
		}
	}
	return engine, nil
}

func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot
}

func filterEnv(r Recommendation) map[string]any {
	return map[string]any{
		"book":       r.Book,
		"score":      r.PredictedScore,
		"similarity": r.Similarity,
	}
}

func (e *Engine) accept(r Recommendation) bool {
	if e.filter == nil {
		return true
	}
	result, err := expr.Run(e.filter, filterEnv(r))
	if err != nil {
		log.Logger().Error("evaluate recommendation filter", zap.String("item_id", r.ItemId), zap.Error(err))
		return false
	}
	return result.(bool)
}

// RecommendByUser recommends unread books rated by the most similar users. Each candidate
// scores rating * similarity clamped to the rating scale.
func (e *Engine) RecommendByUser(userId string, k int) (*UserRecommendations, error) {
	if k < 1 {
		return nil, errors.NotValidf("k %v", k)
	}
	if !e.store.HasUser(userId) {
		return nil, errors.NotFoundf("user %v", userId)
	}
	neighbors, err := e.userModel.Neighbors(userId, e.options.NeighborFanout)
	if err != nil {
		return nil, errors.Trace(err)
	}
	history, err := e.store.History(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	read := mapset.NewThreadUnsafeSet[string]()
	for _, r := range history {
		read.Add(r.ItemId)
	}

	result := &UserRecommendations{
		SimilarUsers:    make([]SimilarUser, 0, len(neighbors)),
		Recommendations: make([]Recommendation, 0),
	}
	var candidates []Recommendation
	weighted := make(map[string]*weightedScore)
	for rank, neighbor := range neighbors {
		sim := base.Round(neighbor.Similarity, 3)
		result.SimilarUsers = append(result.SimilarUsers, SimilarUser{UserId: neighbor.Id, Similarity: sim})
		ratings, err := e.store.History(neighbor.Id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, r := range ratings {
			if read.Contains(r.ItemId) {
				continue
			}
			book, err := e.store.Book(r.ItemId)
			if err != nil {
				return nil, errors.Trace(err)
			}
			if e.options.Aggregation == AggregationWeighted {
				w, exist := weighted[r.ItemId]
				if !exist {
					w = &weightedScore{book: book, neighborId: neighbor.Id, rank: rank, maxSim: sim}
					weighted[r.ItemId] = w
				}
				w.add(r.Rating, sim)
				continue
			}
			candidates = append(candidates, Recommendation{
				Book:           book,
				PredictedScore: score(r.Rating * sim),
				Similarity:     sim,
				NeighborId:     neighbor.Id,
				neighborRank:   rank,
			})
		}
	}
	for _, w := range weighted {
		candidates = append(candidates, w.recommendation())
	}

	for _, candidate := range candidates {
		if e.accept(candidate) {
			result.Recommendations = append(result.Recommendations, candidate)
		}
	}
	sortRecommendations(result.Recommendations)
	if len(result.Recommendations) > k {
		result.Recommendations = result.Recommendations[:k]
	}
	return result, nil
}

type weightedScore struct {
	book       dataset.Book
	neighborId string
	rank       int
	sum        float64
	sumAbs     float64
	maxSim     float64
}

func (w *weightedScore) add(rating, sim float64) {
	w.sum += sim * rating
	if sim < 0 {
		w.sumAbs -= sim
	} else {
		w.sumAbs += sim
	}
	w.maxSim = max(w.maxSim, sim)
}

func (w *weightedScore) recommendation() Recommendation {
	var raw float64
	if w.sumAbs > 0 {
		raw = w.sum / w.sumAbs
	}
	return Recommendation{
		Book:           w.book,
		PredictedScore: score(raw),
		Similarity:     w.maxSim,
		NeighborId:     w.neighborId,
		neighborRank:   w.rank,
	}
}

func score(raw float64) float64 {
	return base.Clamp(base.Round(raw, 2), dataset.MinRating, dataset.MaxRating)
}

// sortRecommendations orders by score descending, then item id, similarity and neighbor rank.
func sortRecommendations(recommendations []Recommendation) {
	sort.Slice(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if a.PredictedScore != b.PredictedScore {
			return a.PredictedScore > b.PredictedScore
		}
		if a.ItemId != b.ItemId {
			return a.ItemId < b.ItemId
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.neighborRank < b.neighborRank
	})
}

// RecommendByItem returns the books most similar to a book, excluding itself.
func (e *Engine) RecommendByItem(itemId string, k int) (*ItemRecommendations, error) {
	if k < 1 {
		return nil, errors.NotValidf("k %v", k)
	}
	source, err := e.store.Book(itemId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// one extra neighbor covers the source book itself
	n := min(k, int(e.itemModel.Index().Len())-1) + 1
	if e.filter != nil {
		n = int(e.itemModel.Index().Len())
	}
	neighbors, err := e.itemModel.Neighbors(itemId, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := &ItemRecommendations{
		SourceBook:      source,
		Recommendations: make([]Recommendation, 0, min(k, len(neighbors))),
	}
	for rank, neighbor := range neighbors {
		if neighbor.Id == itemId {
			continue
		}
		book, err := e.store.Book(neighbor.Id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		avg, err := e.store.AverageRating(neighbor.Id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		recommendation := Recommendation{
			Book:          book,
			Similarity:    base.Round(neighbor.Similarity, 3),
			AverageRating: base.Round(avg, 2),
			neighborRank:  rank,
		}
		if !e.accept(recommendation) {
			continue
		}
		result.Recommendations = append(result.Recommendations, recommendation)
		if len(result.Recommendations) == k {
			break
		}
	}
	return result, nil
}

// SearchUsers returns user ids starting with prefix.
func (e *Engine) SearchUsers(prefix string, limit int) []string {
	return e.store.SearchUsers(prefix, limit)
}

// SearchItems returns item ids starting with prefix.
func (e *Engine) SearchItems(prefix string, limit int) []string {
	return e.store.SearchItems(prefix, limit)
}
