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

import "time"

// Snapshot is the read-only state of a single target
// as it is delivered to subscribers.
type Snapshot struct {
	// TargetID is the id of the monitored target
	TargetID string `json:"site_id"`
	// Status is the classification of the newest sample
	Status Classification `json:"status"`
	// LastResolved is the newest classification that is not pending
	LastResolved Classification `json:"last_status,omitempty"`
	// History is a copy of the samples, oldest first
	History []Classification `json:"history"`
	// Availability is the share of reachable checks in percent
	Availability float64 `json:"uptime_percentage"`
	// Timestamp is the time the snapshot was taken in unix seconds
	Timestamp int64 `json:"timestamp"`
	// ResponseTimeMs is the latency of the newest finished check
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`
}

// Latency returns the latency of the newest finished check
func (s Snapshot) Latency() (time.Duration, bool) {
	if s.ResponseTimeMs == nil {
		return 0, false
	}
	return time.Duration(*s.ResponseTimeMs) * time.Millisecond, true
}

func durationToMs(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
