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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 0.123, Round(0.12345, 3))
	assert.Equal(t, 7.56, Round(7.555, 2))
	assert.Equal(t, -0.5, Round(-0.4999, 2))
	assert.Equal(t, 3.0, Round(3, 2))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(-3.0, 1, 10))
	assert.Equal(t, 10.0, Clamp(12.5, 1, 10))
	assert.Equal(t, 4.2, Clamp(4.2, 1, 10))
	assert.Equal(t, float32(10), Clamp[float32](11, 1, 10))
}

func TestCheckPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer CheckPanic()
		panic("boom")
	})
}
