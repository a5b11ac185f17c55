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

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/telemetry"
)

// minInterval keeps the tick loop from hammering the targets
const minInterval = time.Second

// Validate validates the config. Every problem is logged, all of them are returned joined.
func (c *Config) Validate(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	var errs []error
	invalid := func(err error, key string, value any) {
		log.ErrorContext(ctx, "Invalid configuration", "key", key, "value", value, "error", err)
		errs = append(errs, fmt.Errorf("%w: %s=%v", err, key, value))
	}

	if c.Engine.Interval < minInterval {
		invalid(ErrInvalidInterval, "engine.interval", c.Engine.Interval)
	}
	if c.Engine.Timeout <= 0 {
		invalid(ErrInvalidTimeout, "engine.timeout", c.Engine.Timeout)
	}
	if c.Engine.Concurrency < 1 {
		invalid(ErrInvalidConcurrency, "engine.concurrency", c.Engine.Concurrency)
	}
	if c.Engine.HistorySize < 1 {
		invalid(ErrInvalidHistorySize, "engine.historySize", c.Engine.HistorySize)
	}
	if c.Engine.SubscriberBuffer < 1 {
		invalid(ErrInvalidSubscriberBuffer, "engine.subscriberBuffer", c.Engine.SubscriberBuffer)
	}
	if c.Api.ListeningAddress == "" {
		invalid(ErrInvalidApiAddress, "api.address", c.Api.ListeningAddress)
	}

	if c.Telemetry.Endpoint != "" {
		if u, err := url.ParseRequestURI(c.Telemetry.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			invalid(ErrInvalidTelemetryEndpoint, "telemetry.endpoint", c.Telemetry.Endpoint)
		}
	}
	if c.Telemetry.Archive.Enabled() {
		switch c.Telemetry.Archive.Driver {
		case telemetry.DriverSQLite, telemetry.DriverPostgres:
		default:
			invalid(ErrInvalidArchiveDriver, "telemetry.archive.driver", c.Telemetry.Archive.Driver)
		}
	}

	if err := c.Targets.Validate(); err != nil {
		log.ErrorContext(ctx, "Invalid target provider configuration", "error", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
