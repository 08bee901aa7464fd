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
	"sort"

	"github.com/juju/errors"
)

// Feedback is a rating seen from one side: the number of the partner and the rating.
type Feedback struct {
	Index  int32
	Rating float64
}

// Trainset holds dense indices and co-rating lists built from a Store. It is read-only
// after construction and shared by reference.
type Trainset struct {
	UserIndex *Index
	ItemIndex *Index
	// UserFeedback[u] lists the items rated by u, sorted by item number.
	UserFeedback [][]Feedback
	// ItemFeedback[i] lists the users who rated i, sorted by user number.
	ItemFeedback [][]Feedback
	GlobalMean   float64
	RatingMin    float64
	RatingMax    float64
	count        int
}

// NewTrainset indexes users and items in first-seen order.
func NewTrainset(store *Store) (*Trainset, error) {
	userIndex, itemIndex := NewIndex("user"), NewIndex("item")
	for _, userId := range store.AllUserIds() {
		userIndex.Add(userId)
	}
	for _, itemId := range store.AllItemIds() {
		itemIndex.Add(itemId)
	}
	return NewTrainsetWithIndex(store, userIndex, itemIndex)
}

// NewTrainsetWithIndex builds a Trainset over given indices. Every user and item of the
// store must be present in the indices.
func NewTrainsetWithIndex(store *Store, userIndex, itemIndex *Index) (*Trainset, error) {
	if store.Count() == 0 {
		return nil, errors.NotValidf("empty dataset")
	}
	t := &Trainset{
		UserIndex:    userIndex,
		ItemIndex:    itemIndex,
		UserFeedback: make([][]Feedback, userIndex.Len()),
		ItemFeedback: make([][]Feedback, itemIndex.Len()),
		RatingMin:    MinRating,
		RatingMax:    MaxRating,
		count:        store.Count(),
	}
	var sum float64
	for _, r := range store.Records() {
		u, err := userIndex.ToNumber(r.UserId)
		if err != nil {
			return nil, errors.Trace(err)
		}
		i, err := itemIndex.ToNumber(r.ItemId)
		if err != nil {
			return nil, errors.Trace(err)
		}
		t.UserFeedback[u] = append(t.UserFeedback[u], Feedback{Index: i, Rating: r.Rating})
		t.ItemFeedback[i] = append(t.ItemFeedback[i], Feedback{Index: u, Rating: r.Rating})
		sum += r.Rating
	}
	for _, feedback := range t.UserFeedback {
		sortFeedback(feedback)
	}
	for _, feedback := range t.ItemFeedback {
		sortFeedback(feedback)
	}
	t.GlobalMean = sum / float64(store.Count())
	return t, nil
}

func sortFeedback(feedback []Feedback) {
	sort.Slice(feedback, func(i, j int) bool {
		return feedback[i].Index < feedback[j].Index
	})
}

// CountUsers returns the number of users.
func (t *Trainset) CountUsers() int {
	return int(t.UserIndex.Len())
}

// CountItems returns the number of items.
func (t *Trainset) CountItems() int {
	return int(t.ItemIndex.Len())
}

// Count returns the number of ratings.
func (t *Trainset) Count() int {
	return t.count
}
