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
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bookrec/base"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model/knn"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func randomStore(seed int64, nUsers, nItems int, density float64) (*dataset.Store, error) {
	rng := rand.New(rand.NewSource(seed))
	var records []dataset.RatingRecord
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			if rng.Float64() < density {
				records = append(records, dataset.RatingRecord{
					UserId: fmt.Sprintf("%d", 1000+u),
					ItemId: fmt.Sprintf("%010d", i),
					Rating: float64(1 + rng.Intn(10)),
					Title:  fmt.Sprintf("Book %d", i),
					Author: fmt.Sprintf("Author %d", i%7),
				})
			}
		}
	}
	return dataset.NewStore(records)
}

func testParams() knn.Params {
	params := knn.DefaultParams()
	params.MinSupport = 2
	params.Shrinkage = 10
	return params
}

type EngineTestSuite struct {
	suite.Suite
	snapshot *Snapshot
	engine   *Engine
}

func (suite *EngineTestSuite) SetupSuite() {
	store, err := randomStore(0, 40, 60, 0.3)
	suite.Require().NoError(err)
	suite.snapshot, err = Train(context.Background(), store, testParams(), knn.NewFitConfig().SetJobs(4))
	suite.Require().NoError(err)
	suite.engine, err = NewEngine(suite.snapshot, DefaultOptions())
	suite.Require().NoError(err)
}

func (suite *EngineTestSuite) TestRecommendByUser() {
	for _, userId := range suite.snapshot.Store.AllUserIds() {
		result, err := suite.engine.RecommendByUser(userId, 10)
		suite.NoError(err)
		suite.LessOrEqual(len(result.SimilarUsers), 5)
		suite.LessOrEqual(len(result.Recommendations), 10)
		history, err := suite.snapshot.Store.History(userId)
		suite.NoError(err)
		read := mapset.NewSet[string]()
		for _, r := range history {
			read.Add(r.ItemId)
		}
		sims := make(map[string]float64)
		for _, similar := range result.SimilarUsers {
			suite.NotEqual(userId, similar.UserId)
			suite.Equal(base.Round(similar.Similarity, 3), similar.Similarity)
			sims[similar.UserId] = similar.Similarity
		}
		for i, r := range result.Recommendations {
			// bounded score, unread item, contributed by a similar user
			suite.GreaterOrEqual(r.PredictedScore, 1.0)
			suite.LessOrEqual(r.PredictedScore, 10.0)
			suite.False(read.Contains(r.ItemId))
			sim, exist := sims[r.NeighborId]
			suite.True(exist)
			suite.Equal(sim, r.Similarity)
			ratings, err := suite.snapshot.Store.History(r.NeighborId)
			suite.NoError(err)
			for _, rating := range ratings {
				if rating.ItemId == r.ItemId {
					suite.Equal(base.Clamp(base.Round(rating.Rating*sim, 2), 1, 10), r.PredictedScore)
				}
			}
			book, err := suite.snapshot.Store.Book(r.ItemId)
			suite.NoError(err)
			suite.Equal(book, r.Book)
			if i > 0 {
				prev := result.Recommendations[i-1]
				suite.True(prev.PredictedScore > r.PredictedScore ||
					(prev.PredictedScore == r.PredictedScore && prev.ItemId <= r.ItemId))
			}
		}
	}
}

func (suite *EngineTestSuite) TestRecommendByUserInvalid() {
	result, err := suite.engine.RecommendByUser("unknown", 5)
	suite.True(errors.Is(err, errors.NotFound))
	suite.Nil(result)
	result, err = suite.engine.RecommendByUser("1000", 0)
	suite.True(errors.Is(err, errors.NotValid))
	suite.Nil(result)
}

func (suite *EngineTestSuite) TestRecommendByItem() {
	for _, itemId := range suite.snapshot.Store.AllItemIds() {
		neighbors, err := suite.snapshot.ItemModel.Neighbors(itemId, 1000)
		suite.NoError(err)
		for _, k := range []int{1, 5, 1000} {
			result, err := suite.engine.RecommendByItem(itemId, k)
			suite.NoError(err)
			suite.Equal(itemId, result.SourceBook.ItemId)
			suite.Len(result.Recommendations, min(k, len(neighbors)))
			for i, r := range result.Recommendations {
				suite.NotEqual(itemId, r.ItemId)
				suite.Equal(neighbors[i].Id, r.ItemId)
				suite.Equal(base.Round(neighbors[i].Similarity, 3), r.Similarity)
				avg, err := suite.snapshot.Store.AverageRating(r.ItemId)
				suite.NoError(err)
				suite.Equal(base.Round(avg, 2), r.AverageRating)
			}
		}
	}
	_, err := suite.engine.RecommendByItem("unknown", 5)
	suite.True(errors.Is(err, errors.NotFound))
	_, err = suite.engine.RecommendByItem(suite.snapshot.Store.AllItemIds()[0], -1)
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *EngineTestSuite) TestWeightedAggregation() {
	options := DefaultOptions()
	options.Aggregation = AggregationWeighted
	engine, err := NewEngine(suite.snapshot, options)
	suite.Require().NoError(err)
	for _, userId := range suite.snapshot.Store.AllUserIds() {
		result, err := engine.RecommendByUser(userId, 100)
		suite.NoError(err)
		items := mapset.NewSet[string]()
		for _, r := range result.Recommendations {
			suite.True(items.Add(r.ItemId), "duplicated item %v", r.ItemId)
			suite.GreaterOrEqual(r.PredictedScore, 1.0)
			suite.LessOrEqual(r.PredictedScore, 10.0)
		}
	}
}

func (suite *EngineTestSuite) TestFilter() {
	options := DefaultOptions()
	options.Filter = `score >= 2 && book.Author != "Author 3"`
	engine, err := NewEngine(suite.snapshot, options)
	suite.Require().NoError(err)
	for _, userId := range suite.snapshot.Store.AllUserIds() {
		result, err := engine.RecommendByUser(userId, 10)
		suite.NoError(err)
		for _, r := range result.Recommendations {
			suite.GreaterOrEqual(r.PredictedScore, 2.0)
			suite.NotEqual("Author 3", r.Author)
		}
	}
	for _, itemId := range suite.snapshot.Store.AllItemIds() {
		result, err := engine.RecommendByItem(itemId, 3)
		suite.NoError(err)
		suite.LessOrEqual(len(result.Recommendations), 3)
		for _, r := range result.Recommendations {
			suite.NotEqual("Author 3", r.Author)
		}
	}

	options.Filter = "score +"
	_, err = NewEngine(suite.snapshot, options)
	suite.Error(err)
}

func (suite *EngineTestSuite) TestSnapshotRoundTrip() {
	buf := bytes.NewBuffer(nil)
	suite.Require().NoError(suite.snapshot.Marshal(buf))
	copied, err := UnmarshalSnapshot(buf)
	suite.Require().NoError(err)
	suite.Equal(suite.snapshot.Timestamp.UnixNano(), copied.Timestamp.UnixNano())
	suite.Equal(suite.snapshot.Store.Records(), copied.Store.Records())
	engine, err := NewEngine(copied, DefaultOptions())
	suite.Require().NoError(err)
	for _, userId := range suite.snapshot.Store.AllUserIds() {
		expected, err := suite.engine.RecommendByUser(userId, 10)
		suite.NoError(err)
		actual, err := engine.RecommendByUser(userId, 10)
		suite.NoError(err)
		suite.Equal(expected, actual)
	}
	for _, itemId := range suite.snapshot.Store.AllItemIds() {
		expected, err := suite.engine.RecommendByItem(itemId, 5)
		suite.NoError(err)
		actual, err := engine.RecommendByItem(itemId, 5)
		suite.NoError(err)
		suite.Equal(expected, actual)
	}

	_, err = UnmarshalSnapshot(bytes.NewBufferString("garbage"))
	suite.Error(err)
}

func (suite *EngineTestSuite) TestDeterminism() {
	snapshot, err := Train(context.Background(), suite.snapshot.Store, testParams(), knn.NewFitConfig().SetJobs(1))
	suite.Require().NoError(err)
	engine, err := NewEngine(snapshot, DefaultOptions())
	suite.Require().NoError(err)
	for _, userId := range suite.snapshot.Store.AllUserIds() {
		expected, err := suite.engine.RecommendByUser(userId, 5)
		suite.NoError(err)
		actual, err := engine.RecommendByUser(userId, 5)
		suite.NoError(err)
		suite.Equal(expected, actual)
	}
}

func (suite *EngineTestSuite) TestSearch() {
	suite.Equal([]string{"1000", "1001", "1002"}, suite.engine.SearchUsers("100", 3))
	suite.Len(suite.engine.SearchItems("00000000", 10), 10)
}

func (suite *EngineTestSuite) TestHugeK() {
	userId := suite.snapshot.Store.AllUserIds()[0]
	itemId := suite.snapshot.Store.AllItemIds()[0]
	nItems := suite.snapshot.Store.CountItems()
	nRatings := suite.snapshot.Store.Count()
	for _, k := range []int{1 << 50, math.MaxInt} {
		suite.NotPanics(func() {
			expected, err := suite.engine.RecommendByUser(userId, nRatings)
			suite.NoError(err)
			result, err := suite.engine.RecommendByUser(userId, k)
			suite.NoError(err)
			suite.Equal(expected, result)

			expectedItems, err := suite.engine.RecommendByItem(itemId, nItems)
			suite.NoError(err)
			items, err := suite.engine.RecommendByItem(itemId, k)
			suite.NoError(err)
			suite.Equal(expectedItems.Recommendations, items.Recommendations)
			suite.LessOrEqual(len(items.Recommendations), nItems-1)
		})
	}
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestNewEngineInvalid(t *testing.T) {
	_, err := NewEngine(nil, DefaultOptions())
	assert.True(t, errors.Is(err, errors.NotYetAvailable))
	store, err := randomStore(1, 5, 5, 0.8)
	require.NoError(t, err)
	snapshot, err := Train(context.Background(), store, testParams(), nil)
	require.NoError(t, err)
	_, err = NewEngine(snapshot, Options{NeighborFanout: 0, Aggregation: AggregationNone})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewEngine(snapshot, Options{NeighborFanout: 5, Aggregation: "max"})
	assert.True(t, errors.Is(err, errors.NotSupported))
	_, err = Train(context.Background(), nil, testParams(), nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

// Three users where the first one shares a single book with each of the others.
func TestRecommendByUser_SingleCoRating(t *testing.T) {
	store, err := dataset.NewStore([]dataset.RatingRecord{
		{UserId: "U1", ItemId: "A", Rating: 8},
		{UserId: "U2", ItemId: "A", Rating: 6},
		{UserId: "U2", ItemId: "B", Rating: 7},
		{UserId: "U3", ItemId: "A", Rating: 9},
		{UserId: "U3", ItemId: "C", Rating: 4},
	})
	require.NoError(t, err)
	params := knn.DefaultParams()
	params.MinSupport = 1
	snapshot, err := Train(context.Background(), store, params, nil)
	require.NoError(t, err)
	engine, err := NewEngine(snapshot, DefaultOptions())
	require.NoError(t, err)
	neighbors, err := snapshot.UserModel.Neighbors("U1", 2)
	assert.NoError(t, err)
	assert.Empty(t, neighbors)
	result, err := engine.RecommendByUser("U1", 5)
	assert.NoError(t, err)
	assert.Empty(t, result.SimilarUsers)
	assert.Empty(t, result.Recommendations)
}

func TestHolder(t *testing.T) {
	holder := NewHolder()
	_, err := holder.Engine()
	assert.True(t, errors.Is(err, errors.NotYetAvailable))
	assert.Zero(t, holder.Version())

	store, err := randomStore(2, 20, 30, 0.4)
	require.NoError(t, err)
	var engines []*Engine
	for i := 0; i < 2; i++ {
		snapshot, err := Train(context.Background(), store, testParams(), knn.NewFitConfig().SetJobs(2))
		require.NoError(t, err)
		engine, err := NewEngine(snapshot, DefaultOptions())
		require.NoError(t, err)
		engines = append(engines, engine)
	}
	assert.Equal(t, int64(1), holder.Swap(engines[0]))

	// readers never observe a missing engine while it is swapped
	var wg sync.WaitGroup
	errs := make(chan error, 1000)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				engine, err := holder.Engine()
				if err != nil {
					errs <- err
					return
				}
				userId := store.AllUserIds()[(worker+j)%store.CountUsers()]
				if _, err = engine.RecommendByUser(userId, 5); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	for i := 0; i < 50; i++ {
		holder.Swap(engines[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(51), holder.Version())
}
