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
	"sort"

	"github.com/gorse-io/bookrec/base/encoding"
	"github.com/juju/errors"
)

// SimilarityMatrix is a sparse symmetric matrix. Row i keeps the numbers of entities with
// a defined similarity to i in ascending order, next to the values. The diagonal is never
// stored.
type SimilarityMatrix struct {
	indices [][]int32
	values  [][]float64
}

// NewSimilarityMatrix creates an empty n x n matrix.
func NewSimilarityMatrix(n int) *SimilarityMatrix {
	return &SimilarityMatrix{
		indices: make([][]int32, n),
		values:  make([][]float64, n),
	}
}

// Len returns the number of rows.
func (m *SimilarityMatrix) Len() int {
	return len(m.indices)
}

// Get returns the similarity between a and b and whether it is defined.
func (m *SimilarityMatrix) Get(a, b int32) (float64, bool) {
	if a < 0 || int(a) >= len(m.indices) {
		return 0, false
	}
	row := m.indices[a]
	pos := sort.Search(len(row), func(i int) bool {
		return row[i] >= b
	})
	if pos < len(row) && row[pos] == b {
		return m.values[a][pos], true
	}
	return 0, false
}

// Row returns defined neighbors of a and their similarities. The slices must not be modified.
func (m *SimilarityMatrix) Row(a int32) ([]int32, []float64) {
	return m.indices[a], m.values[a]
}

// CountPairs returns the number of defined unordered pairs.
func (m *SimilarityMatrix) CountPairs() int {
	var n int
	for _, row := range m.indices {
		n += len(row)
	}
	return n / 2
}

// Marshal writes the matrix into a byte stream.
func (m *SimilarityMatrix) Marshal(w io.Writer) error {
	if err := encoding.WriteNumber(w, int32(len(m.indices))); err != nil {
		return errors.Trace(err)
	}
	for i := range m.indices {
		if err := encoding.WriteSlice(w, m.indices[i]); err != nil {
			return errors.Trace(err)
		}
		if err := encoding.WriteSlice(w, m.values[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// UnmarshalSimilarityMatrix reads a matrix from a byte stream.
func UnmarshalSimilarityMatrix(r io.Reader) (*SimilarityMatrix, error) {
	n, err := encoding.ReadNumber[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if n < 0 {
		return nil, errors.NotValidf("similarity matrix size %v", n)
	}
	m := NewSimilarityMatrix(int(n))
	for i := range m.indices {
		if m.indices[i], err = encoding.ReadSlice[int32](r); err != nil {
			return nil, errors.Trace(err)
		}
		if m.values[i], err = encoding.ReadSlice[float64](r); err != nil {
			return nil, errors.Trace(err)
		}
		if len(m.indices[i]) != len(m.values[i]) {
			return nil, errors.NotValidf("similarity matrix row %v", i)
		}
		if len(m.indices[i]) == 0 {
			m.indices[i], m.values[i] = nil, nil
		}
	}
	return m, nil
}
