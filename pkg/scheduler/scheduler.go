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

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/bus"
	"github.com/caas-team/ironshield/pkg/probe"
	"github.com/caas-team/ironshield/pkg/targets"
	"github.com/caas-team/ironshield/pkg/telemetry"
	"github.com/caas-team/ironshield/pkg/timeline"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultConcurrency = 10
	// forwardTimeout bounds a single telemetry delivery
	forwardTimeout = 10 * time.Second
)

// Config configures the tick loop
type Config struct {
	// Interval between two ticks
	Interval time.Duration
	// Timeout of a single probe
	Timeout time.Duration
	// Concurrency is the maximum amount of probes in flight
	Concurrency int
}

// Option configures optional sinks of the scheduler
type Option func(*Scheduler)

// WithForwarder sets the sink that receives the state of all active targets
// after every batch
func WithForwarder(f telemetry.Forwarder) Option {
	return func(s *Scheduler) { s.forwarder = f }
}

// WithArchive sets the sink that receives only the targets checked in a batch
func WithArchive(f telemetry.Forwarder) Option {
	return func(s *Scheduler) { s.archive = f }
}

// Publisher delivers snapshots to subscribers
type Publisher interface {
	Publish(snapshots []timeline.Snapshot) error
}

// Scheduler periodically probes all enabled targets.
//
// Each tick marks the due targets as pending, publishes them as one batch
// and probes them with bounded concurrency. The next tick starts only after
// all probes of the current tick finished.
type Scheduler struct {
	cfg       Config
	provider  targets.Provider
	store     *timeline.Store
	publisher Publisher
	prober    probe.Prober
	forwarder telemetry.Forwarder
	archive   telemetry.Forwarder
	metrics   metrics

	// lastChecked and known are only accessed by the tick loop
	lastChecked map[string]time.Time
	known       map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
	forwards sync.WaitGroup
}

// New creates a scheduler
func New(cfg Config, provider targets.Provider, store *timeline.Store, publisher Publisher, prober probe.Prober, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = probe.DefaultTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	s := &Scheduler{
		cfg:         cfg,
		provider:    provider,
		store:       store,
		publisher:   publisher,
		prober:      prober,
		metrics:     newMetrics(),
		lastChecked: map[string]time.Time{},
		known:       map[string]struct{}{},
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the tick loop. The first tick fires immediately, later ticks
// follow a fixed period. Ticks that fall into a running batch are dropped.
// Run returns nil once the context is canceled or [Scheduler.Stop] was called,
// and [bus.ErrClosed] if the subscribers can no longer be reached.
// In-flight probes always finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)
	defer s.forwards.Wait()

	log.InfoContext(ctx, "Starting scheduler", "interval", s.cfg.Interval.String(), "concurrency", s.cfg.Concurrency)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	first := make(chan time.Time, 1)
	first <- time.Now()

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "Scheduler stopped", "reason", ctx.Err())
			return nil
		case <-s.done:
			log.InfoContext(ctx, "Scheduler stopped")
			return nil
		case <-first:
		case <-ticker.C:
		}
		if ctx.Err() != nil || s.stopped() {
			continue
		}
		if err := s.tick(ctx); err != nil {
			log.ErrorContext(ctx, "Scheduler failed", "error", err)
			return err
		}
		select {
		case <-ticker.C:
			log.DebugContext(ctx, "Batch exceeded the interval, dropping tick")
		default:
		}
	}
}

// Stop prevents any further tick. A running tick finishes first.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// tick runs a single batch of checks
func (s *Scheduler) tick(ctx context.Context) error {
	log := logger.FromContext(ctx)
	s.metrics.ticks.Inc()

	list, err := s.provider.Targets(ctx)
	if err != nil {
		s.metrics.skipped.Inc()
		log.WarnContext(ctx, "Could not read targets, skipping tick", "error", err)
		return nil
	}

	enabled := make([]targets.Target, 0, len(list))
	ids := make([]string, 0, len(list))
	for _, t := range list {
		if !t.Enabled() {
			continue
		}
		enabled = append(enabled, t)
		ids = append(ids, t.ID)
	}
	s.store.Reconcile(ids)
	s.forget(ids)

	due := s.due(enabled, time.Now())
	if len(due) == 0 {
		log.DebugContext(ctx, "No targets due")
		return nil
	}

	dueIDs := make([]string, len(due))
	for i, t := range due {
		dueIDs[i] = t.ID
		s.store.BeginCheck(t.ID)
	}
	if err := s.publisher.Publish(s.store.Snapshots(dueIDs)); errors.Is(err, bus.ErrClosed) {
		return err
	}
	log.DebugContext(ctx, "Probing targets", "amount", len(due))

	// probes outlive a canceled run so the batch can drain
	probeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, t := range due {
		t := t
		g.Go(func() error {
			return s.check(probeCtx, t)
		})
	}
	err = g.Wait()

	s.forward(ctx, s.forwarder, s.store.SnapshotAll())
	s.forward(ctx, s.archive, s.store.Snapshots(dueIDs))
	return err
}

// due returns the targets whose interval elapsed and records the check time
func (s *Scheduler) due(list []targets.Target, now time.Time) []targets.Target {
	due := make([]targets.Target, 0, len(list))
	for _, t := range list {
		last, ok := s.lastChecked[t.ID]
		if ok && t.Interval > 0 && now.Sub(last) < t.Interval {
			continue
		}
		s.lastChecked[t.ID] = now
		due = append(due, t)
	}
	return due
}

// forget drops the state of targets that are no longer enabled
func (s *Scheduler) forget(ids []string) {
	current := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		current[id] = struct{}{}
	}
	for id := range s.known {
		if _, ok := current[id]; !ok {
			delete(s.lastChecked, id)
			s.metrics.remove(id)
		}
	}
	s.known = current
}

// check probes a single target and publishes its new state
func (s *Scheduler) check(ctx context.Context, t targets.Target) error {
	s.metrics.inFlight.Inc()
	res := s.prober.Probe(ctx, t.URL, s.cfg.Timeout)
	s.metrics.inFlight.Dec()

	s.store.CompleteCheck(t.ID, res.Classification, res.Latency)
	logger.FromContext(ctx).DebugContext(ctx, "Probe finished",
		"target", t.ID, "status", res.Classification, "latency", res.Latency.String(), "error", res.Err)

	snap, ok := s.store.Snapshot(t.ID)
	if !ok {
		return nil
	}
	up := 0.0
	if res.Classification == timeline.Reachable {
		up = 1
	}
	s.metrics.up.WithLabelValues(t.ID).Set(up)
	s.metrics.availability.WithLabelValues(t.ID).Set(snap.Availability)
	s.metrics.duration.WithLabelValues(t.ID).Observe(res.Latency.Seconds())

	if err := s.publisher.Publish([]timeline.Snapshot{snap}); errors.Is(err, bus.ErrClosed) {
		return err
	}
	return nil
}

// forward hands the snapshots to the sink without waiting
func (s *Scheduler) forward(ctx context.Context, sink telemetry.Forwarder, snapshots []timeline.Snapshot) {
	if sink == nil || len(snapshots) == 0 {
		return
	}
	s.forwards.Add(1)
	go func() {
		defer s.forwards.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forwardTimeout)
		defer cancel()
		if err := sink.Forward(ctx, snapshots); err != nil {
			logger.FromContext(ctx).WarnContext(ctx, "Failed to forward telemetry", "error", err)
		}
	}()
}

// GetMetricCollectors returns the collectors of the scheduler
func (s *Scheduler) GetMetricCollectors() []prometheus.Collector {
	return s.metrics.collectors()
}
