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

package targets

import (
	"slices"
	"time"
)

// Target is a monitored bookmark
type Target struct {
	// ID is the stable identifier of the target; defaults to the name
	ID string `json:"id" yaml:"id" mapstructure:"id"`
	// Name is the display name
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// URL is the probed address
	URL string `json:"url" yaml:"url" mapstructure:"url"`
	// Category groups targets on the dashboard
	Category string `json:"category,omitempty" yaml:"category" mapstructure:"category"`
	// Tags are free form labels
	Tags []string `json:"tags,omitempty" yaml:"tags" mapstructure:"tags"`
	// Interval is the minimum time between two checks of the target.
	// Zero checks the target on every tick.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval" mapstructure:"interval"`
	// Disabled targets are never checked
	Disabled bool `json:"disabled,omitempty" yaml:"disabled" mapstructure:"disabled"`
}

// Enabled reports whether the target should be checked
func (t Target) Enabled() bool {
	return !t.Disabled
}

// cloneTargets returns a deep copy of the targets
func cloneTargets(in []Target) []Target {
	if in == nil {
		return nil
	}
	out := make([]Target, len(in))
	for i, t := range in {
		t.Tags = slices.Clone(t.Tags)
		out[i] = t
	}
	return out
}
