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

package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/bus"
	"github.com/caas-team/ironshield/pkg/probe"
	"github.com/caas-team/ironshield/pkg/scheduler"
	"github.com/caas-team/ironshield/pkg/targets"
	"github.com/caas-team/ironshield/pkg/telemetry"
	"github.com/caas-team/ironshield/pkg/timeline"
)

// Config configures the engine
type Config struct {
	// Interval between two ticks
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	// Timeout of a single probe
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// Concurrency is the maximum amount of probes in flight
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	// HistorySize is the amount of samples kept per target
	HistorySize int `json:"historySize" yaml:"historySize" mapstructure:"historySize"`
	// SubscriberBuffer is the amount of events queued per subscriber
	SubscriberBuffer int `json:"subscriberBuffer" yaml:"subscriberBuffer" mapstructure:"subscriberBuffer"`
}

// Option configures optional dependencies of the engine
type Option func(*Engine)

// WithProber replaces the http prober
func WithProber(p probe.Prober) Option {
	return func(e *Engine) { e.prober = p }
}

// WithForwarder sets the telemetry forwarder. It receives all active targets after every batch.
func WithForwarder(f telemetry.Forwarder) Option {
	return func(e *Engine) { e.forwarder = f }
}

// WithArchive sets the telemetry archive. It receives only the targets checked in a batch.
func WithArchive(f telemetry.Forwarder) Option {
	return func(e *Engine) { e.archive = f }
}

// WithRegistry registers the engine collectors
func WithRegistry(r prometheus.Registerer) Option {
	return func(e *Engine) { e.registry = r }
}

// Engine monitors the targets of a provider and streams their state to subscribers.
// Every engine owns its store, bus and scheduler.
type Engine struct {
	store     *timeline.Store
	bus       *bus.Bus
	scheduler *scheduler.Scheduler

	prober    probe.Prober
	forwarder telemetry.Forwarder
	archive   telemetry.Forwarder
	registry  prometheus.Registerer

	shutdownOnce sync.Once
}

// New creates an engine for the targets of the provider
func New(cfg Config, provider targets.Provider, opts ...Option) *Engine {
	e := &Engine{prober: probe.NewHTTPProber()}
	for _, opt := range opts {
		opt(e)
	}

	e.store = timeline.NewStore(cfg.HistorySize)
	e.bus = bus.New(e.store, cfg.SubscriberBuffer)
	e.scheduler = scheduler.New(scheduler.Config{
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		Concurrency: cfg.Concurrency,
	}, provider, e.store, e.bus, e.prober, scheduler.WithForwarder(e.forwarder), scheduler.WithArchive(e.archive))
	return e
}

// Run monitors the targets until the context is canceled or the engine is
// shut down. In-flight probes finish before Run returns; the bus is closed
// afterwards, which ends all subscriptions.
func (e *Engine) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	defer e.bus.Close()

	if e.registry != nil {
		collectors := append(e.scheduler.GetMetricCollectors(), e.bus.GetMetricCollectors()...)
		for _, c := range collectors {
			if err := e.registry.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					log.Error("Failed to register engine metrics", "error", err)
					return err
				}
			}
		}
		defer func() {
			for _, c := range collectors {
				e.registry.Unregister(c)
			}
		}()
	}

	return e.scheduler.Run(ctx)
}

// Subscribe registers a new subscriber. Its first event carries the state of all targets.
func (e *Engine) Subscribe() *bus.Subscription {
	return e.bus.Subscribe()
}

// Unsubscribe removes the subscriber
func (e *Engine) Unsubscribe(sub *bus.Subscription) {
	e.bus.Unsubscribe(sub)
}

// Snapshots returns the current state of all enabled targets
func (e *Engine) Snapshots() []timeline.Snapshot {
	return e.store.SnapshotAll()
}

// Subscribers returns the number of subscribers
func (e *Engine) Subscribers() int {
	return e.bus.Len()
}

// Shutdown stops the scheduler and sends a single control event with the
// reason to every subscriber. No tick starts after the control event.
// Only the first call has an effect.
func (e *Engine) Shutdown(reason string) {
	e.shutdownOnce.Do(func() {
		e.scheduler.Stop()
		if err := e.bus.Broadcast(reason); err != nil {
			logger.NewLogger().Warn("Could not notify subscribers about shutdown", "error", err)
		}
	})
}
