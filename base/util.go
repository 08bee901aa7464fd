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
	"math"
	"runtime/debug"

	"github.com/gorse-io/bookrec/base/log"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
)

// CheckPanic catches a panic and logs it with the stack trace.
func CheckPanic() {
	if r := recover(); r != nil {
		log.Logger().Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
	}
}

// Round rounds x half away from zero to the given number of decimals.
func Round(x float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(x*scale) / scale
}

// Clamp restricts x to [low, high].
func Clamp[T constraints.Float](x, low, high T) T {
	return max(low, min(high, x))
}
