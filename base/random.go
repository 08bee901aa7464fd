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

package base

import (
	"math/rand"
)

// RandomGenerator is the seeded random generator used by dataset splits.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// Partition shuffles [0, n) and cuts it into a head of size round(n*ratio) and the rest.
// Both parts are returned in ascending order so callers keep the original record order.
func (rng RandomGenerator) Partition(n int, ratio float64) (head, tail []int) {
	perm := rng.Perm(n)
	size := int(float64(n)*ratio + 0.5)
	if size > n {
		size = n
	}
	marked := make([]bool, n)
	for _, i := range perm[:size] {
		marked[i] = true
	}
	head = make([]int, 0, size)
	tail = make([]int, 0, n-size)
	for i := 0; i < n; i++ {
		if marked[i] {
			head = append(head, i)
		} else {
			tail = append(tail, i)
		}
	}
	return
}
