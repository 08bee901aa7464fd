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

package dataset

import (
	"bytes"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []RatingRecord {
	return []RatingRecord{
		{UserId: "u1", ItemId: "i1", Rating: 8, Title: "Dune", Author: "Frank Herbert", ImageURL: "http://img/i1"},
		{UserId: "u2", ItemId: "i1", Rating: 6, Title: "Dune (ignored)", Author: "F. Herbert"},
		{UserId: "u2", ItemId: "i2", Rating: 9, Title: "Emma", Author: "Jane Austen"},
		{UserId: "u3", ItemId: "i2", Rating: 4, Title: "Emma", Author: "Jane Austen"},
		{UserId: "u1", ItemId: "i3", Rating: 7, Title: "Ulysses", Author: "James Joyce"},
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 5, store.Count())
	assert.Equal(t, []string{"u1", "u2", "u3"}, store.AllUserIds())
	assert.Equal(t, []string{"i1", "i2", "i3"}, store.AllItemIds())
	assert.True(t, store.HasUser("u3"))
	assert.False(t, store.HasUser("u4"))
	assert.True(t, store.HasItem("i3"))
	assert.False(t, store.HasItem("i4"))

	history, err := store.History("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"i1", "i3"}, []string{history[0].ItemId, history[1].ItemId})
	_, err = store.History("u4")
	assert.True(t, errors.Is(err, errors.NotFound))

	book, err := store.Book("i1")
	require.NoError(t, err)
	assert.Equal(t, Book{ItemId: "i1", Title: "Dune", Author: "Frank Herbert", ImageURL: "http://img/i1"}, book)
	_, err = store.Book("i4")
	assert.True(t, errors.Is(err, errors.NotFound))

	avg, err := store.AverageRating("i2")
	require.NoError(t, err)
	assert.Equal(t, 6.5, avg)
	_, err = store.AverageRating("i4")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestNewStoreInvalid(t *testing.T) {
	records := append(sampleRecords(), RatingRecord{UserId: "u1", ItemId: "i1", Rating: 3})
	_, err := NewStore(records)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewStore([]RatingRecord{{UserId: "", ItemId: "i1", Rating: 3}})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewStore([]RatingRecord{{UserId: "u1", ItemId: "", Rating: 3}})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewStore([]RatingRecord{{UserId: "u1", ItemId: "i1", Rating: 11}})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewStore([]RatingRecord{{UserId: "u1", ItemId: "i1", Rating: 0}})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestStore_Search(t *testing.T) {
	var records []RatingRecord
	for _, id := range []string{"276725", "276726", "2767", "27", "1000", "276727"} {
		records = append(records, RatingRecord{UserId: id, ItemId: "0" + id, Rating: 5})
	}
	store, err := NewStore(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"2767", "276725", "276726", "276727"}, store.SearchUsers("2767", 10))
	assert.Equal(t, []string{"2767", "276725"}, store.SearchUsers("2767", 2))
	assert.Empty(t, store.SearchUsers("9", 10))
	assert.Equal(t, []string{"01000"}, store.SearchItems("01", 10))
}

func TestIndex(t *testing.T) {
	index := NewIndex("user")
	assert.Equal(t, int32(0), index.Add("a"))
	assert.Equal(t, int32(1), index.Add("b"))
	assert.Equal(t, int32(0), index.Add("a"))
	assert.Equal(t, int32(2), index.Len())
	number, err := index.ToNumber("b")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), number)
	_, err = index.ToNumber("c")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.Equal(t, "user c not found", err.Error())
	name, err := index.ToName(0)
	assert.NoError(t, err)
	assert.Equal(t, "a", name)
	_, err = index.ToName(2)
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = index.ToName(-1)
	assert.True(t, errors.Is(err, errors.NotFound))

	buf := bytes.NewBuffer(nil)
	assert.NoError(t, index.Marshal(buf))
	copied, err := UnmarshalIndex(buf, "user")
	assert.NoError(t, err)
	assert.Equal(t, index, copied)
}

func TestNewTrainset(t *testing.T) {
	store, err := NewStore(sampleRecords())
	require.NoError(t, err)
	trainset, err := NewTrainset(store)
	require.NoError(t, err)
	assert.Equal(t, 3, trainset.CountUsers())
	assert.Equal(t, 3, trainset.CountItems())
	assert.Equal(t, 5, trainset.Count())
	assert.InDelta(t, 6.8, trainset.GlobalMean, 1e-9)
	assert.Equal(t, []Feedback{{0, 8}, {2, 7}}, trainset.UserFeedback[0])
	assert.Equal(t, []Feedback{{1, 9}, {2, 4}}, trainset.ItemFeedback[1])

	// lists are sorted by number even when records arrive out of order
	store, err = NewStore([]RatingRecord{
		{UserId: "a", ItemId: "x", Rating: 1},
		{UserId: "b", ItemId: "y", Rating: 2},
		{UserId: "b", ItemId: "x", Rating: 3},
		{UserId: "a", ItemId: "y", Rating: 4},
	})
	require.NoError(t, err)
	trainset, err = NewTrainset(store)
	require.NoError(t, err)
	assert.Equal(t, []Feedback{{0, 3}, {1, 2}}, trainset.UserFeedback[1])
	assert.Equal(t, []Feedback{{0, 4}, {1, 2}}, trainset.ItemFeedback[1])

	_, err = NewTrainset(&Store{})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestNewTrainsetWithIndex(t *testing.T) {
	store, err := NewStore(sampleRecords())
	require.NoError(t, err)
	userIndex, itemIndex := NewIndex("user"), NewIndex("item")
	userIndex.Add("u1")
	itemIndex.Add("i1")
	_, err = NewTrainsetWithIndex(store, userIndex, itemIndex)
	assert.True(t, errors.Is(err, errors.NotFound))
}
