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

package heap

import (
	"container/heap"
)

// _heap is a min-heap under better: the worst kept element sits on top.
type _heap[T any] struct {
	elems  []T
	better func(a, b T) bool
}

func (h *_heap[T]) Len() int           { return len(h.elems) }
func (h *_heap[T]) Less(i, j int) bool { return h.better(h.elems[j], h.elems[i]) }
func (h *_heap[T]) Swap(i, j int)      { h.elems[i], h.elems[j] = h.elems[j], h.elems[i] }
func (h *_heap[T]) Push(x any)         { h.elems = append(h.elems, x.(T)) }
func (h *_heap[T]) Pop() any {
	old := h.elems
	n := len(old)
	x := old[n-1]
	h.elems = old[:n-1]
	return x
}

// TopKFilter keeps the k best elements under a strict ordering.
type TopKFilter[T any] struct {
	h _heap[T]
	k int
}

// NewTopKFilter creates a top k filter. better(a, b) reports whether a ranks before b and
// must be a strict weak ordering.
func NewTopKFilter[T any](k int, better func(a, b T) bool) *TopKFilter[T] {
	return &TopKFilter[T]{h: _heap[T]{better: better}, k: k}
}

// Len returns the number of kept elements.
func (filter *TopKFilter[T]) Len() int {
	return filter.h.Len()
}

// Push pushes the element x onto the heap.
// The complexity is O(log k).
func (filter *TopKFilter[T]) Push(x T) {
	if filter.k <= 0 {
		return
	}
	if filter.h.Len() < filter.k {
		heap.Push(&filter.h, x)
	} else if filter.h.better(x, filter.h.elems[0]) {
		filter.h.elems[0] = x
		heap.Fix(&filter.h, 0)
	}
}

// PopAll pops all elements in the filter, best first.
func (filter *TopKFilter[T]) PopAll() []T {
	elems := make([]T, filter.h.Len())
	for i := len(elems) - 1; i >= 0; i-- {
		elems[i] = heap.Pop(&filter.h).(T)
	}
	return elems
}
