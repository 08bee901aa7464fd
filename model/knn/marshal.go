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
	"io"

	"github.com/gorse-io/bookrec/base/encoding"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
)

// Marshal writes hyper-parameters, baseline and similarity matrix. The trainset is not
// written: readers rebuild it from the rating store.
func (m *NeighborModel) Marshal(w io.Writer) error {
	if err := m.fitted(); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteNumber(w, int32(m.axis)); err != nil {
		return errors.Trace(err)
	}
	if err := marshalParams(w, m.params); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteNumber(w, m.baseline.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, m.baseline.UserBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, m.baseline.ItemBias); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.matrix.Marshal(w))
}

// UnmarshalNeighborModel reads a model written by Marshal and attaches the trainset.
func UnmarshalNeighborModel(r io.Reader, trainset *dataset.Trainset) (*NeighborModel, error) {
	axis, err := encoding.ReadNumber[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if Axis(axis) != UserAxis && Axis(axis) != ItemAxis {
		return nil, errors.NotValidf("axis %v", axis)
	}
	params, err := unmarshalParams(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	baseline := &Baseline{}
	if baseline.GlobalMean, err = encoding.ReadNumber[float64](r); err != nil {
		return nil, errors.Trace(err)
	}
	if baseline.UserBias, err = encoding.ReadSlice[float64](r); err != nil {
		return nil, errors.Trace(err)
	}
	if baseline.ItemBias, err = encoding.ReadSlice[float64](r); err != nil {
		return nil, errors.Trace(err)
	}
	if len(baseline.UserBias) != trainset.CountUsers() || len(baseline.ItemBias) != trainset.CountItems() {
		return nil, errors.NotValidf("baseline size")
	}
	matrix, err := UnmarshalSimilarityMatrix(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m := &NeighborModel{
		axis:     Axis(axis),
		params:   params,
		trainset: trainset,
		baseline: baseline,
		matrix:   matrix,
	}
	if matrix.Len() != int(m.Index().Len()) {
		return nil, errors.NotValidf("similarity matrix size %v", matrix.Len())
	}
	return m, nil
}

func marshalParams(w io.Writer, params Params) error {
	for _, v := range []int32{int32(params.K), int32(params.MinK), int32(params.MinSupport), int32(params.Baseline.NEpochs)} {
		if err := encoding.WriteNumber(w, v); err != nil {
			return errors.Trace(err)
		}
	}
	for _, v := range []float64{params.Shrinkage, params.Baseline.RegUser, params.Baseline.RegItem, params.Baseline.Lr, params.Baseline.Reg} {
		if err := encoding.WriteNumber(w, v); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(encoding.WriteString(w, params.Baseline.Method))
}

func unmarshalParams(r io.Reader) (Params, error) {
	var params Params
	ints := make([]int32, 4)
	for i := range ints {
		v, err := encoding.ReadNumber[int32](r)
		if err != nil {
			return Params{}, errors.Trace(err)
		}
		ints[i] = v
	}
	floats := make([]float64, 5)
	for i := range floats {
		v, err := encoding.ReadNumber[float64](r)
		if err != nil {
			return Params{}, errors.Trace(err)
		}
		floats[i] = v
	}
	method, err := encoding.ReadString(r)
	if err != nil {
		return Params{}, errors.Trace(err)
	}
	params.K, params.MinK, params.MinSupport, params.Baseline.NEpochs = int(ints[0]), int(ints[1]), int(ints[2]), int(ints[3])
	params.Shrinkage, params.Baseline.RegUser, params.Baseline.RegItem = floats[0], floats[1], floats[2]
	params.Baseline.Lr, params.Baseline.Reg = floats[3], floats[4]
	params.Baseline.Method = method
	return params, nil
}
