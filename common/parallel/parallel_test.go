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
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	a := lo.Range(10000)
	b := make([]int, len(a))
	workerIds := make([]int, len(a))
	// multiple threads
	err := Parallel(context.Background(), len(a), 4, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		time.Sleep(time.Microsecond)
		return nil
	})
	assert.NoError(t, err)
	workersSet := mapset.NewSet(workerIds...)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, 4, workersSet.Cardinality())
	// single thread
	err = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		return nil
	})
	assert.NoError(t, err)
	workersSet = mapset.NewSet(workerIds...)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, workersSet.Cardinality())
}

func TestParallelFail(t *testing.T) {
	// multiple threads
	err := Parallel(context.Background(), 10000, 4, func(workerId, jobId int) error {
		if jobId%2 == 1 {
			return fmt.Errorf("error from %d", jobId)
		}
		return nil
	})
	assert.Error(t, err)
	// single thread
	err = Parallel(context.Background(), 10000, 1, func(workerId, jobId int) error {
		if jobId%2 == 1 {
			return fmt.Errorf("error from %d", jobId)
		}
		return nil
	})
	assert.Error(t, err)
}

func TestParallelAllFail(t *testing.T) {
	before := runtime.NumGoroutine()
	var count atomic.Int32
	err := Parallel(context.Background(), 10*chanSize, 4, func(_, jobId int) error {
		count.Add(1)
		panic(fmt.Sprintf("job %d", jobId))
	})
	assert.Error(t, err)
	assert.Less(t, int(count.Load()), 10*chanSize)
	// the producer exits once the workers have failed
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 5*time.Second, 10*time.Millisecond)
}

func TestParallelPanic(t *testing.T) {
	err := Parallel(context.Background(), 100, 4, func(workerId, jobId int) error {
		if jobId == 42 {
			panic("boom")
		}
		return nil
	})
	assert.Error(t, err)
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	err := Parallel(ctx, 100, 4, func(_, jobId int) error {
		if jobId == 0 {
			cancel()
		}
		count.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, int(count.Load()), 100)
}

func TestForEach(t *testing.T) {
	a := lo.Range(1000)
	b := make([]int, len(a))
	err := ForEach(context.Background(), a, 4, func(i, v int) {
		b[i] = v
	})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	err = ForEach(context.Background(), a, 1, func(i, v int) {
		b[i] = -v
	})
	assert.NoError(t, err)
	assert.Equal(t, -999, b[999])
}
