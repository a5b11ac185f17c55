// ironshield
// (C) 2024, Deutsche Telekom IT GmbH
//
// Deutsche Telekom IT GmbH and all other contributors /
// copyright owners license this file to you under the Apache
// License, Version 2.0 (the "License"); you may not use this
// file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package timeline

import (
	"math"
	"time"
)

// Classification is the outcome of a single availability check
type Classification string

const (
	// Reachable means the target answered with a success status
	Reachable Classification = "up"
	// Unreachable means the check failed, timed out or got a non-success status
	Unreachable Classification = "down"
	// Pending is the placeholder of a check that is still in flight
	Pending Classification = "loading"
)

// Resolved reports whether the classification is the result of a finished check
func (c Classification) Resolved() bool {
	return c == Reachable || c == Unreachable
}

// Sample is one entry in the history of a target
type Sample struct {
	Classification Classification
	// Latency is nil for pending samples
	Latency *time.Duration
}

// Availability returns the percentage of reachable samples among all
// resolved samples, rounded to two decimals. Pending samples count
// neither as reachable nor as resolved. Without resolved samples the
// availability is 0.
func Availability(samples []Sample) float64 {
	var up, resolved int
	for _, s := range samples {
		if !s.Classification.Resolved() {
			continue
		}
		resolved++
		if s.Classification == Reachable {
			up++
		}
	}
	if resolved == 0 {
		return 0
	}
	pct := float64(up) / float64(resolved) * 100
	return math.Round(pct*100) / 100
}
