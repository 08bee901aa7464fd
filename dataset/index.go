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

package dataset

import (
	"io"

	"github.com/gorse-io/bookrec/base/encoding"
	"github.com/juju/errors"
)

// Index manages the map between raw ids and dense numbers. Numbers are assigned in
// first-seen order and never change once assigned.
type Index struct {
	kind    string
	numbers map[string]int32
	names   []string
}

// NewIndex creates an empty Index. kind names the entity in NotFound errors.
func NewIndex(kind string) *Index {
	return &Index{
		kind:    kind,
		numbers: make(map[string]int32),
	}
}

// Len returns the number of indexed names.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.names))
}

// Add adds a new name to the index and returns its number.
func (idx *Index) Add(name string) int32 {
	if number, exist := idx.numbers[name]; exist {
		return number
	}
	number := int32(len(idx.names))
	idx.numbers[name] = number
	idx.names = append(idx.names, name)
	return number
}

// ToNumber converts a raw id to a dense number.
func (idx *Index) ToNumber(name string) (int32, error) {
	if number, exist := idx.numbers[name]; exist {
		return number, nil
	}
	return -1, errors.NotFoundf("%v %v", idx.kind, name)
}

// ToName converts a dense number to a raw id.
func (idx *Index) ToName(number int32) (string, error) {
	if number < 0 || int(number) >= len(idx.names) {
		return "", errors.NotFoundf("%v number %v", idx.kind, number)
	}
	return idx.names[number], nil
}

// Names returns all names ordered by number.
func (idx *Index) Names() []string {
	return idx.names
}

// Marshal writes the index into a byte stream.
func (idx *Index) Marshal(w io.Writer) error {
	return errors.Trace(encoding.WriteStrings(w, idx.names))
}

// UnmarshalIndex reads an index from a byte stream.
func UnmarshalIndex(r io.Reader, kind string) (*Index, error) {
	names, err := encoding.ReadStrings(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	idx := NewIndex(kind)
	for _, name := range names {
		idx.Add(name)
	}
	if int(idx.Len()) != len(names) {
		return nil, errors.NotValidf("duplicated names in %v index", kind)
	}
	return idx, nil
}
