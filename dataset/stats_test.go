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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	summary := Summarize([]float64{4, 1, 3, 2, 5})
	assert.Equal(t, 5, summary.Count)
	assert.Equal(t, 3.0, summary.Mean)
	assert.InDelta(t, 1.5811, summary.Std, 1e-4)
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 5.0, summary.Max)
	assert.LessOrEqual(t, summary.Q1, summary.Median)
	assert.LessOrEqual(t, summary.Median, summary.Q3)
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Count: 1, Mean: 7, Min: 7, Q1: 7, Median: 7, Q3: 7, Max: 7}, Summarize([]float64{7}))
}

func TestStatistics(t *testing.T) {
	store, err := NewStore(sampleRecords())
	require.NoError(t, err)
	stats := Statistics(store)
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 3, stats.Items)
	assert.Equal(t, []RatingCount{{4, 1}, {6, 1}, {7, 1}, {8, 1}, {9, 1}}, stats.Distribution)
	assert.Equal(t, 1.0, stats.PerUser.Min)
	assert.Equal(t, 2.0, stats.PerUser.Max)
	assert.InDelta(t, 5.0/3, stats.PerItem.Mean, 1e-9)
}

func TestRescaleLowVariance(t *testing.T) {
	records := []RatingRecord{
		{UserId: "a", ItemId: "x", Rating: 3},
		{UserId: "a", ItemId: "y", Rating: 4},
		{UserId: "b", ItemId: "x", Rating: 6},
	}
	rescaled, ok := RescaleLowVariance(records)
	assert.True(t, ok)
	assert.Equal(t, []float64{6, 8, 10}, []float64{rescaled[0].Rating, rescaled[1].Rating, rescaled[2].Rating})
	// input is untouched
	assert.Equal(t, 3.0, records[0].Rating)

	records = []RatingRecord{
		{UserId: "a", ItemId: "x", Rating: 1},
		{UserId: "a", ItemId: "y", Rating: 10},
	}
	rescaled, ok = RescaleLowVariance(records)
	assert.False(t, ok)
	assert.Equal(t, records, rescaled)
}

func TestSplit(t *testing.T) {
	var records []RatingRecord
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			records = append(records, RatingRecord{UserId: string(rune('a' + i)), ItemId: string(rune('A' + j)), Rating: 5})
		}
	}
	store, err := NewStore(records)
	require.NoError(t, err)
	train, test, err := Split(store, 0.2, 0)
	require.NoError(t, err)
	assert.Equal(t, 80, train.Count())
	assert.Len(t, test, 20)
	train2, test2, err := Split(store, 0.2, 0)
	require.NoError(t, err)
	assert.Equal(t, train.Records(), train2.Records())
	assert.Equal(t, test, test2)
	_, _, err = Split(store, 1, 0)
	assert.Error(t, err)
}
