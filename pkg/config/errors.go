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

package config

import "errors"

var (
	// ErrInvalidInterval is returned when the tick interval is invalid
	ErrInvalidInterval = errors.New("invalid tick interval")
	// ErrInvalidTimeout is returned when the probe timeout is invalid
	ErrInvalidTimeout = errors.New("invalid probe timeout")
	// ErrInvalidConcurrency is returned when the probe concurrency is invalid
	ErrInvalidConcurrency = errors.New("invalid probe concurrency")
	// ErrInvalidHistorySize is returned when the history size is invalid
	ErrInvalidHistorySize = errors.New("invalid history size")
	// ErrInvalidSubscriberBuffer is returned when the subscriber buffer is invalid
	ErrInvalidSubscriberBuffer = errors.New("invalid subscriber buffer")
	// ErrInvalidApiAddress is returned when the api address is empty
	ErrInvalidApiAddress = errors.New("invalid api address")
	// ErrInvalidTelemetryEndpoint is returned when the telemetry endpoint is invalid
	ErrInvalidTelemetryEndpoint = errors.New("invalid telemetry endpoint")
	// ErrInvalidArchiveDriver is returned when the archive driver is not supported
	ErrInvalidArchiveDriver = errors.New("invalid archive driver")
)
