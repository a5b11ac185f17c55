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

package shield

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caas-team/ironshield/internal/httpclient"
	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/api"
	"github.com/caas-team/ironshield/pkg/config"
	"github.com/caas-team/ironshield/pkg/engine"
	"github.com/caas-team/ironshield/pkg/metrics"
	"github.com/caas-team/ironshield/pkg/targets"
	"github.com/caas-team/ironshield/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// ShutdownMessage is sent to every subscriber before the server stops
const ShutdownMessage = "Server is shutting down for maintenance"

// Shield serves the availability of the targets of a dashboard
type Shield struct {
	cfg     *config.Config
	version string

	metrics metrics.Provider
	api     api.API
	// notifier posts uptime reports and clicks to the telemetry collector
	notifier *telemetry.HTTPForwarder

	provider targets.DocumentProvider
	engine   *engine.Engine
	archive  *telemetry.SQLArchive
}

// New creates a new Shield from the given configuration
func New(cfg *config.Config, version string) *Shield {
	s := &Shield{
		cfg:     cfg,
		version: version,
		metrics: metrics.New(),
		api:     api.New(cfg.Api),
	}
	s.notifier = telemetry.NewHTTPForwarder(s.destination, cfg.Telemetry.Timeout)
	return s
}

// Run loads the targets and serves their availability until the context is canceled.
// Subscribers are told about the shutdown before the api server stops.
func (s *Shield) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)
	ctx = httpclient.IntoContext(ctx, httpclient.New())

	if err := s.setup(ctx); err != nil {
		return err
	}
	if s.archive != nil {
		defer func() {
			if err := s.archive.Close(); err != nil {
				log.Error("Failed to close telemetry archive", "error", err)
			}
		}()
	}

	if err := s.api.RegisterRoutes(ctx, s.routes()...); err != nil {
		log.Error("Failed to register routes", "error", err)
		return err
	}

	// The engine and the api are stopped explicitly in order to notify the subscribers first
	background := context.WithoutCancel(ctx)
	cEngine := make(chan error, 1)
	cApi := make(chan error, 1)
	go func() {
		cEngine <- s.engine.Run(background)
	}()
	go func() {
		cApi <- s.api.Run(background)
	}()

	refreshCtx, stopRefresh := context.WithCancel(background)
	defer stopRefresh()
	if r, ok := s.provider.(targets.Refresher); ok {
		go func() {
			if err := r.Run(refreshCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Target refresh stopped, serving the last known targets", "error", err)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		log.Info("Shutting down ironshield", "reason", context.Cause(ctx))
		s.engine.Shutdown(ShutdownMessage)
		err = <-cEngine
	case err = <-cEngine:
		log.Error("Engine stopped unexpectedly", "error", err)
		if err == nil {
			err = errors.New("engine stopped unexpectedly")
		}
	case err = <-cApi:
		log.Error("Api stopped unexpectedly", "error", err)
		s.engine.Shutdown(ShutdownMessage)
		err = errors.Join(err, <-cEngine)
	}
	stopRefresh()

	return errors.Join(err, s.api.Shutdown(background))
}

// setup creates the target provider, the telemetry forwarders and the engine
func (s *Shield) setup(ctx context.Context) error {
	log := logger.FromContext(ctx)

	provider, err := targets.New(&s.cfg.Targets)
	if err != nil {
		log.Error("Failed to create target provider", "error", err)
		return err
	}
	if err = provider.Load(ctx); err != nil {
		log.Error("Failed to load targets", "type", s.cfg.Targets.Type, "error", err)
		return fmt.Errorf("failed to load targets: %w", err)
	}
	s.provider = provider
	s.register(ctx, provider.GetMetricCollectors()...)

	opts := []engine.Option{
		engine.WithForwarder(s.notifier),
		engine.WithRegistry(s.metrics.GetRegistry()),
	}
	if s.cfg.Telemetry.Archive.Enabled() {
		s.archive, err = telemetry.NewSQLArchive(ctx, s.cfg.Telemetry.Archive)
		if err != nil {
			log.Error("Failed to open telemetry archive", "driver", s.cfg.Telemetry.Archive.Driver, "error", err)
			return err
		}
		opts = append(opts, engine.WithArchive(s.archive))
	}

	s.engine = engine.New(s.cfg.Engine, provider, opts...)
	return nil
}

// register adds the collectors to the registry
func (s *Shield) register(ctx context.Context, collectors ...prometheus.Collector) {
	log := logger.FromContext(ctx)
	for _, c := range collectors {
		if err := s.metrics.GetRegistry().Register(c); err != nil {
			log.Error("Could not add metrics collector to registry", "error", err)
		}
	}
}

// destination resolves the telemetry collector. The configuration takes
// precedence over the document of the provider.
func (s *Shield) destination(ctx context.Context) (telemetry.Destination, bool) {
	dest := telemetry.Destination{
		Endpoint:      s.cfg.Telemetry.Endpoint,
		DashboardName: s.cfg.Telemetry.DashboardName,
	}
	if s.provider != nil {
		if doc, err := s.provider.Document(ctx); err == nil {
			if dest.Endpoint == "" {
				dest.Endpoint = doc.TelemetryEndpoint
			}
			if dest.DashboardName == "" {
				dest.DashboardName = doc.SiteName
			}
		}
	}
	return dest, strings.TrimSpace(dest.Endpoint) != ""
}
