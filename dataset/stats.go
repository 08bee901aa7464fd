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

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// LowVarianceThreshold is the standard deviation below which ratings are rescaled.
const LowVarianceThreshold = 2.0

// Summary describes a sample like a box plot.
type Summary struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Summarize computes the summary of x. Std is the sample standard deviation.
func Summarize(x []float64) Summary {
	if len(x) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		v := sorted[0]
		return Summary{Count: 1, Mean: v, Min: v, Q1: v, Median: v, Q3: v, Max: v}
	}
	summary := Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, sorted, nil),
	}
	summary.Mean, summary.Std = stat.MeanStdDev(sorted, nil)
	return summary
}

// RatingCount is the number of ratings with a value.
type RatingCount struct {
	Rating float64
	Count  int
}

// Stats describes a rating store.
type Stats struct {
	Rows         int
	Users        int
	Items        int
	Ratings      Summary
	Distribution []RatingCount
	PerUser      Summary
	PerItem      Summary
}

// Statistics computes the statistics of a store.
func Statistics(store *Store) Stats {
	ratings := lo.Map(store.Records(), func(r RatingRecord, _ int) float64 {
		return r.Rating
	})
	counts := lo.CountValues(ratings)
	distribution := lo.MapToSlice(counts, func(rating float64, count int) RatingCount {
		return RatingCount{Rating: rating, Count: count}
	})
	sort.Slice(distribution, func(i, j int) bool {
		return distribution[i].Rating < distribution[j].Rating
	})
	perUser := lo.Map(store.AllUserIds(), func(userId string, _ int) float64 {
		return float64(len(store.history[userId]))
	})
	perItem := lo.Map(store.AllItemIds(), func(itemId string, _ int) float64 {
		return float64(store.itemCount[itemId])
	})
	return Stats{
		Rows:         store.Count(),
		Users:        store.CountUsers(),
		Items:        store.CountItems(),
		Ratings:      Summarize(ratings),
		Distribution: distribution,
		PerUser:      Summarize(perUser),
		PerItem:      Summarize(perItem),
	}
}

// RescaleLowVariance doubles every rating (clamped to the rating scale) when the sample
// standard deviation of ratings is below LowVarianceThreshold. It returns a new slice and
// whether rescaling happened.
func RescaleLowVariance(records []RatingRecord) ([]RatingRecord, bool) {
	if len(records) < 2 {
		return records, false
	}
	ratings := lo.Map(records, func(r RatingRecord, _ int) float64 {
		return r.Rating
	})
	if stat.StdDev(ratings, nil) >= LowVarianceThreshold {
		return records, false
	}
	rescaled := make([]RatingRecord, len(records))
	for i, r := range records {
		r.Rating = min(MaxRating, max(MinRating, 2*r.Rating))
		rescaled[i] = r
	}
	return rescaled, true
}
