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

package telemetry

import (
	"context"

	"github.com/caas-team/ironshield/pkg/timeline"
)

// Forwarder delivers snapshots to an external sink.
// Forwarding is best effort; callers only log the returned error.
type Forwarder interface {
	Forward(ctx context.Context, snapshots []timeline.Snapshot) error
}

// ForwarderFunc is an adapter to use ordinary functions as Forwarder
type ForwarderFunc func(ctx context.Context, snapshots []timeline.Snapshot) error

// Forward calls f(ctx, snapshots)
func (f ForwarderFunc) Forward(ctx context.Context, snapshots []timeline.Snapshot) error {
	return f(ctx, snapshots)
}
