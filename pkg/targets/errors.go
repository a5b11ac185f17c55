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
	"errors"
	"fmt"
)

// ErrNotLoaded is returned when a provider has not loaded a document yet
var ErrNotLoaded = errors.New("no target document loaded")

// ErrInvalidConfig is returned when a target document is invalid
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Reason)
}

// ErrUnknownProvider is returned for an unsupported provider type
type ErrUnknownProvider struct {
	Type string
}

func (e ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown target provider %q", e.Type)
}
