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
	"github.com/gorse-io/bookrec/base"
	"github.com/juju/errors"
)

// Split randomly holds out testSize of the records. The train part keeps load order.
func Split(store *Store, testSize float64, seed int64) (*Store, []RatingRecord, error) {
	if testSize < 0 || testSize >= 1 {
		return nil, nil, errors.NotValidf("test size %v", testSize)
	}
	rng := base.NewRandomGenerator(seed)
	test, train := rng.Partition(store.Count(), testSize)
	records := store.Records()
	trainRecords := make([]RatingRecord, 0, len(train))
	for _, i := range train {
		trainRecords = append(trainRecords, records[i])
	}
	testRecords := make([]RatingRecord, 0, len(test))
	for _, i := range test {
		testRecords = append(testRecords, records[i])
	}
	trainStore, err := NewStore(trainRecords)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return trainStore, testRecords, nil
}
