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
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/bookrec/common/parallel"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
)

// Axis selects the entities compared by a neighbor model.
type Axis int

const (
	UserAxis Axis = iota
	ItemAxis
)

func (axis Axis) String() string {
	switch axis {
	case UserAxis:
		return "user"
	case ItemAxis:
		return "item"
	default:
		return "unknown"
	}
}

// rows returns the feedback of entities on the axis and the inverted index from partners
// on the opposite axis back to entities.
func (axis Axis) rows(trainset *dataset.Trainset) (rows, inverted [][]dataset.Feedback) {
	if axis == UserAxis {
		return trainset.UserFeedback, trainset.ItemFeedback
	}
	return trainset.ItemFeedback, trainset.UserFeedback
}

func (axis Axis) index(trainset *dataset.Trainset) *dataset.Index {
	if axis == UserAxis {
		return trainset.UserIndex
	}
	return trainset.ItemIndex
}

func (axis Axis) estimate(baseline *Baseline, entity, partner int32) float64 {
	if axis == UserAxis {
		return baseline.Estimate(entity, partner)
	}
	return baseline.Estimate(partner, entity)
}

// residuals subtracts baselines from every rating in lists.
func (axis Axis) residuals(baseline *Baseline, lists [][]dataset.Feedback, inverted bool) [][]float64 {
	res := make([][]float64, len(lists))
	for x, feedback := range lists {
		res[x] = make([]float64, len(feedback))
		for j, f := range feedback {
			if inverted {
				res[x][j] = f.Rating - axis.estimate(baseline, f.Index, int32(x))
			} else {
				res[x][j] = f.Rating - axis.estimate(baseline, int32(x), f.Index)
			}
		}
	}
	return res
}

type accumulator struct {
	prods   []float64
	sqx     []float64
	sqy     []float64
	freq    []int32
	touched *bitset.BitSet
}

func newAccumulator(n int) *accumulator {
	return &accumulator{
		prods:   make([]float64, n),
		sqx:     make([]float64, n),
		sqy:     make([]float64, n),
		freq:    make([]int32, n),
		touched: bitset.New(uint(n)),
	}
}

// FitSimilarity computes the shrunk pearson baseline similarity between every pair of
// entities on the axis which share at least max(min_support, 2) partners:
//
//	sim(x, y) = Σ rx*ry / sqrt(Σ rx² * Σ ry²) * (n-1) / (n-1+shrinkage)
//
// where r are baseline residuals over the n co-rated partners. Only pairs reachable through
// the inverted index are visited, and each pair is computed once by its smaller entity.
func FitSimilarity(ctx context.Context, trainset *dataset.Trainset, axis Axis, baseline *Baseline, params Params, config *FitConfig) (*SimilarityMatrix, error) {
	config = config.LoadDefaultIfNil()
	rows, inverted := axis.rows(trainset)
	n := len(rows)
	rowResiduals := axis.residuals(baseline, rows, false)
	invResiduals := axis.residuals(baseline, inverted, true)
	support := int32(params.support())

	type entry struct {
		index int32
		value float64
	}
	upper := make([][]entry, n)
	accumulators := make([]*accumulator, config.Jobs)
	err := parallel.Parallel(ctx, n, config.Jobs, func(workerId, jobId int) error {
		if accumulators[workerId] == nil {
			accumulators[workerId] = newAccumulator(n)
		}
		acc := accumulators[workerId]
		x := int32(jobId)
		for j, f := range rows[x] {
			rx := rowResiduals[x][j]
			raters := inverted[f.Index]
			start := sort.Search(len(raters), func(k int) bool {
				return raters[k].Index > x
			})
			for k := start; k < len(raters); k++ {
				y := raters[k].Index
				ry := invResiduals[f.Index][k]
				acc.prods[y] += rx * ry
				acc.sqx[y] += rx * rx
				acc.sqy[y] += ry * ry
				acc.freq[y]++
				acc.touched.Set(uint(y))
			}
		}
		var row []entry
		for i, ok := acc.touched.NextSet(0); ok; i, ok = acc.touched.NextSet(i + 1) {
			if acc.freq[i] >= support {
				denom := math.Sqrt(acc.sqx[i] * acc.sqy[i])
				if denom > 0 {
					sim := acc.prods[i] / denom
					sim = math.Max(-1, math.Min(1, sim))
					freq := float64(acc.freq[i])
					sim *= (freq - 1) / (freq - 1 + params.Shrinkage)
					row = append(row, entry{index: int32(i), value: sim})
				}
			}
			acc.prods[i], acc.sqx[i], acc.sqy[i], acc.freq[i] = 0, 0, 0, 0
		}
		acc.touched.ClearAll()
		upper[x] = row
		config.tick()
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	// mirror the upper triangle, rows stay sorted because x is visited in order
	m := NewSimilarityMatrix(n)
	for x := 0; x < n; x++ {
		for _, e := range upper[x] {
			m.indices[e.index] = append(m.indices[e.index], int32(x))
			m.values[e.index] = append(m.values[e.index], e.value)
		}
		for _, e := range upper[x] {
			m.indices[x] = append(m.indices[x], e.index)
			m.values[x] = append(m.values[x], e.value)
		}
	}
	return m, nil
}
