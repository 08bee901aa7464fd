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
	"sync"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

const chanSize = 1024

// Parallel runs nJobs jobs on nWorkers workers. The worker receives its own id, so callers
// can keep per-worker scratch buffers indexed by workerId. The first error (by job id) is
// returned after all workers stop. Cancelling ctx stops scheduling new jobs.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := worker(0, i); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	// the first failure stops the producer; workers keep draining so it never blocks
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := make(chan int, chanSize)
	// producer
	go func() {
		defer close(c)
		for i := 0; i < nJobs; i++ {
			select {
			case <-jobCtx.Done():
				return
			case c <- i:
			}
		}
	}()
	// consumer
	var wg sync.WaitGroup
	errs := make([]error, nJobs)
	for j := 0; j < nWorkers; j++ {
		workerId := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jobId := range c {
				if jobCtx.Err() != nil {
					continue
				}
				if err := safeRun(worker, workerId, jobId); err != nil {
					errs[jobId] = err
					cancel()
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func safeRun(worker func(workerId, jobId int) error, workerId, jobId int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job %d panicked: %v", jobId, r)
		}
	}()
	return worker(workerId, jobId)
}

// ForEach calls worker on every element of a using nWorkers goroutines.
func ForEach[T any](ctx context.Context, a []T, nWorkers int, worker func(int, T)) error {
	if nWorkers <= 1 {
		for i, v := range a {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			worker(i, v)
		}
		return nil
	}
	c := make(chan lo.Tuple2[int, T], chanSize)
	go func() {
		defer close(c)
		for i, v := range a {
			select {
			case <-ctx.Done():
				return
			case c <- lo.Tuple2[int, T]{A: i, B: v}:
			}
		}
	}()
	var wg sync.WaitGroup
	for j := 0; j < nWorkers; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range c {
				worker(job.A, job.B)
			}
		}()
	}
	wg.Wait()
	return errors.Trace(ctx.Err())
}
