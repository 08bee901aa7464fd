// Copyright 2020 gorse Project Authors
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
	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
)

// Baseline estimates b_ui = mu + b_u + b_i.
type Baseline struct {
	GlobalMean float64
	UserBias   []float64
	ItemBias   []float64
}

// FitBaseline fits user and item biases on a trainset.
func FitBaseline(trainset *dataset.Trainset, params BaselineParams) (*Baseline, error) {
	b := &Baseline{
		GlobalMean: trainset.GlobalMean,
		UserBias:   make([]float64, trainset.CountUsers()),
		ItemBias:   make([]float64, trainset.CountItems()),
	}
	switch params.Method {
	case BaselineALS:
		b.fitALS(trainset, params)
	case BaselineSGD:
		b.fitSGD(trainset, params)
	default:
		return nil, errors.NotSupportedf("baseline method %v", params.Method)
	}
	return b, nil
}

// fitALS alternates closed form updates: items first, then users.
func (b *Baseline) fitALS(trainset *dataset.Trainset, params BaselineParams) {
	for epoch := 0; epoch < params.NEpochs; epoch++ {
		for i, feedback := range trainset.ItemFeedback {
			var dev float64
			for _, f := range feedback {
				dev += f.Rating - b.GlobalMean - b.UserBias[f.Index]
			}
			b.ItemBias[i] = dev / (params.RegItem + float64(len(feedback)))
		}
		for u, feedback := range trainset.UserFeedback {
			var dev float64
			for _, f := range feedback {
				dev += f.Rating - b.GlobalMean - b.ItemBias[f.Index]
			}
			b.UserBias[u] = dev / (params.RegUser + float64(len(feedback)))
		}
	}
}

// fitSGD runs stochastic gradient descent with a fixed global mean.
func (b *Baseline) fitSGD(trainset *dataset.Trainset, params BaselineParams) {
	for epoch := 0; epoch < params.NEpochs; epoch++ {
		for u, feedback := range trainset.UserFeedback {
			for _, f := range feedback {
				diff := f.Rating - b.GlobalMean - b.UserBias[u] - b.ItemBias[f.Index]
				b.UserBias[u] += params.Lr * (diff - params.Reg*b.UserBias[u])
				b.ItemBias[f.Index] += params.Lr * (diff - params.Reg*b.ItemBias[f.Index])
			}
		}
	}
}

// Estimate returns the baseline of a user and an item by numbers.
func (b *Baseline) Estimate(userIndex, itemIndex int32) float64 {
	return b.GlobalMean + b.UserBias[userIndex] + b.ItemBias[itemIndex]
}
