// Copyright 2025 gorse Project Authors
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

package recommend

import (
	"github.com/juju/errors"
	"go.uber.org/atomic"
)

// Holder publishes the current engine. Readers keep the engine they loaded even if a new
// one is swapped in meanwhile.
type Holder struct {
	engine  atomic.Pointer[Engine]
	version atomic.Int64
}

func NewHolder() *Holder {
	return &Holder{}
}

// Engine returns the current engine.
func (h *Holder) Engine() (*Engine, error) {
	engine := h.engine.Load()
	if engine == nil {
		return nil, errors.NotYetAvailablef("model")
	}
	return engine, nil
}

// Swap publishes a new engine and returns the new version.
func (h *Holder) Swap(engine *Engine) int64 {
	h.engine.Store(engine)
	version := h.version.Inc()
	SnapshotVersion.Set(float64(version))
	return version
}

// Version increases on every swap.
func (h *Holder) Version() int64 {
	return h.version.Load()
}
