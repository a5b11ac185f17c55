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

package bus

import "github.com/caas-team/ironshield/pkg/timeline"

// EventKind distinguishes status updates from control notices
type EventKind string

const (
	// Update carries one or more target snapshots
	Update EventKind = "update"
	// Control carries a notice to all viewers, e.g. a shutdown
	Control EventKind = "control"
)

// Event is a message delivered to subscribers
type Event struct {
	Kind      EventKind           `json:"type"`
	Snapshots []timeline.Snapshot `json:"snapshots,omitempty"`
	Message   string              `json:"message,omitempty"`
}
