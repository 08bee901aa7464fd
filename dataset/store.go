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
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Store is the immutable collection of ratings. It is safe for concurrent reads.
type Store struct {
	records   []RatingRecord
	userIds   []string
	itemIds   []string
	history   map[string][]int
	books     map[string]Book
	itemSum   map[string]float64
	itemCount map[string]int
}

// NewStore validates records and indexes them. Duplicated (user, item) pairs are rejected.
func NewStore(records []RatingRecord) (*Store, error) {
	s := &Store{
		records:   make([]RatingRecord, len(records)),
		history:   make(map[string][]int),
		books:     make(map[string]Book),
		itemSum:   make(map[string]float64),
		itemCount: make(map[string]int),
	}
	copy(s.records, records)
	pairs := mapset.NewThreadUnsafeSetWithSize[lo.Tuple2[string, string]](len(records))
	for i, r := range s.records {
		if err := r.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		if !pairs.Add(lo.T2(r.UserId, r.ItemId)) {
			return nil, errors.NotValidf("duplicated rating (%v, %v)", r.UserId, r.ItemId)
		}
		if _, exist := s.history[r.UserId]; !exist {
			s.userIds = append(s.userIds, r.UserId)
		}
		s.history[r.UserId] = append(s.history[r.UserId], i)
		if _, exist := s.books[r.ItemId]; !exist {
			s.itemIds = append(s.itemIds, r.ItemId)
			s.books[r.ItemId] = r.book()
		}
		s.itemSum[r.ItemId] += r.Rating
		s.itemCount[r.ItemId]++
	}
	return s, nil
}

// Records returns all records in load order. The slice must not be modified.
func (s *Store) Records() []RatingRecord {
	return s.records
}

// Count returns the number of ratings.
func (s *Store) Count() int {
	return len(s.records)
}

// CountUsers returns the number of distinct users.
func (s *Store) CountUsers() int {
	return len(s.userIds)
}

// CountItems returns the number of distinct items.
func (s *Store) CountItems() int {
	return len(s.itemIds)
}

// HasUser reports whether the user has rated anything.
func (s *Store) HasUser(userId string) bool {
	_, exist := s.history[userId]
	return exist
}

// HasItem reports whether the item has been rated.
func (s *Store) HasItem(itemId string) bool {
	_, exist := s.books[itemId]
	return exist
}

// History returns ratings of a user in load order.
func (s *Store) History(userId string) ([]RatingRecord, error) {
	indices, exist := s.history[userId]
	if !exist {
		return nil, errors.NotFoundf("user %v", userId)
	}
	return lo.Map(indices, func(i int, _ int) RatingRecord {
		return s.records[i]
	}), nil
}

// Book returns metadata of an item. The first record of the item provides it.
func (s *Store) Book(itemId string) (Book, error) {
	book, exist := s.books[itemId]
	if !exist {
		return Book{}, errors.NotFoundf("item %v", itemId)
	}
	return book, nil
}

// AverageRating returns the mean rating of an item.
func (s *Store) AverageRating(itemId string) (float64, error) {
	n, exist := s.itemCount[itemId]
	if !exist {
		return 0, errors.NotFoundf("item %v", itemId)
	}
	return s.itemSum[itemId] / float64(n), nil
}

// AllUserIds returns distinct user ids in first-seen order.
func (s *Store) AllUserIds() []string {
	return s.userIds
}

// AllItemIds returns distinct item ids in first-seen order.
func (s *Store) AllItemIds() []string {
	return s.itemIds
}

// SearchUsers returns at most limit user ids starting with prefix, in ascending order.
func (s *Store) SearchUsers(prefix string, limit int) []string {
	return searchPrefix(s.userIds, prefix, limit)
}

// SearchItems returns at most limit item ids starting with prefix, in ascending order.
func (s *Store) SearchItems(prefix string, limit int) []string {
	return searchPrefix(s.itemIds, prefix, limit)
}

func searchPrefix(ids []string, prefix string, limit int) []string {
	matched := lo.Filter(ids, func(id string, _ int) bool {
		return strings.HasPrefix(id, prefix)
	})
	sort.Strings(matched)
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
