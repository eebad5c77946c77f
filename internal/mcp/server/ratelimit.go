// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"golang.org/x/time/rate"
)

// RateLimiter gates MCP tool calls. Executions draw from a separate, tighter
// bucket than the overall call budget.
type RateLimiter struct {
	execLimiter *rate.Limiter
	callLimiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter with specified limits.
// execsPerMinute: max pica.execute calls per minute
// callsPerMinute: max total tool calls per minute
func NewRateLimiter(execsPerMinute, callsPerMinute int) *RateLimiter {
	return &RateLimiter{
		execLimiter: rate.NewLimiter(rate.Limit(float64(execsPerMinute)/60.0), execsPerMinute),
		callLimiter: rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute),
	}
}

// AllowExecute checks if a pica.execute call is allowed
func (rl *RateLimiter) AllowExecute() bool {
	return rl.execLimiter.Allow()
}

// AllowCall checks if any tool call is allowed
func (rl *RateLimiter) AllowCall() bool {
	return rl.callLimiter.Allow()
}
