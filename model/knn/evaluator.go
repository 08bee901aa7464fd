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

	"github.com/gorse-io/bookrec/common/parallel"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Score is the accuracy of rating predictions.
type Score struct {
	RMSE float64
	MAE  float64
	// Impossible counts predictions that fell back to the global mean.
	Impossible int
}

// Evaluate predicts every test rating on config.Jobs workers and compares against the truth.
func Evaluate(ctx context.Context, m *NeighborModel, test []dataset.RatingRecord, config *FitConfig) (Score, error) {
	if len(test) == 0 {
		return Score{}, nil
	}
	config = config.LoadDefaultIfNil()
	errs := make([]float64, len(test))
	possible := make([]bool, len(test))
	if err := parallel.ForEach(ctx, test, config.Jobs, func(i int, r dataset.RatingRecord) {
		var prediction float64
		prediction, possible[i] = m.Predict(r.UserId, r.ItemId)
		errs[i] = prediction - r.Rating
	}); err != nil {
		return Score{}, errors.Trace(err)
	}
	squared := lo.Map(errs, func(e float64, _ int) float64 { return e * e })
	absolute := lo.Map(errs, func(e float64, _ int) float64 { return math.Abs(e) })
	return Score{
		RMSE:       math.Sqrt(stat.Mean(squared, nil)),
		MAE:        stat.Mean(absolute, nil),
		Impossible: lo.Count(possible, false),
	}, nil
}
