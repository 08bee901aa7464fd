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
	"runtime"

	"github.com/juju/errors"
)

const (
	BaselineALS = "als"
	BaselineSGD = "sgd"
)

// BaselineParams are hyper-parameters of the baseline estimator.
type BaselineParams struct {
	Method  string
	NEpochs int
	// ALS
	RegUser float64
	RegItem float64
	// SGD
	Lr  float64
	Reg float64
}

// Params are hyper-parameters of a neighbor model.
type Params struct {
	K          int
	MinK       int
	MinSupport int
	Shrinkage  float64
	Baseline   BaselineParams
}

// DefaultParams returns the default hyper-parameters.
func DefaultParams() Params {
	return Params{
		K:          30,
		MinK:       3,
		MinSupport: 5,
		Shrinkage:  100,
		Baseline:   DefaultBaselineParams(BaselineALS),
	}
}

// DefaultBaselineParams returns the default hyper-parameters of a baseline method.
func DefaultBaselineParams(method string) BaselineParams {
	if method == BaselineSGD {
		return BaselineParams{Method: BaselineSGD, NEpochs: 20, Lr: 0.005, Reg: 0.02}
	}
	return BaselineParams{Method: BaselineALS, NEpochs: 10, RegUser: 15, RegItem: 10}
}

// Validate checks hyper-parameters.
func (p Params) Validate() error {
	if p.K < 1 {
		return errors.NotValidf("k %v", p.K)
	}
	if p.MinK < 0 {
		return errors.NotValidf("min_k %v", p.MinK)
	}
	if p.MinSupport < 0 {
		return errors.NotValidf("min_support %v", p.MinSupport)
	}
	if p.Shrinkage < 0 {
		return errors.NotValidf("shrinkage %v", p.Shrinkage)
	}
	switch p.Baseline.Method {
	case BaselineALS, BaselineSGD:
	default:
		return errors.NotSupportedf("baseline method %v", p.Baseline.Method)
	}
	if p.Baseline.NEpochs < 0 {
		return errors.NotValidf("baseline n_epochs %v", p.Baseline.NEpochs)
	}
	return nil
}

// support is the smallest co-rated count for a defined similarity.
func (p Params) support() int {
	return max(p.MinSupport, 2)
}

// Progress receives one tick per processed entity.
type Progress interface {
	Add(int) error
}

type FitConfig struct {
	Jobs     int
	Progress Progress
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Jobs: runtime.NumCPU()}
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	if config.Jobs < 1 {
		config.Jobs = 1
	}
	return config
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}

func (config *FitConfig) SetProgress(progress Progress) *FitConfig {
	config.Progress = progress
	return config
}

func (config *FitConfig) tick() {
	if config.Progress != nil {
		_ = config.Progress.Add(1)
	}
}
