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
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRefreshInterval is used by refreshing providers without an interval
const DefaultRefreshInterval = 5 * time.Minute

// Provider supplies the current list of targets.
// The returned slice is a copy owned by the caller.
type Provider interface {
	Targets(ctx context.Context) ([]Target, error)
}

// DocumentProvider additionally supplies the whole dashboard document
type DocumentProvider interface {
	Provider
	Document(ctx context.Context) (Document, error)
	// Load reads the document once
	Load(ctx context.Context) error
	// GetMetricCollectors returns the collectors of the provider
	GetMetricCollectors() []prometheus.Collector
}

// Refresher is implemented by providers that keep their document up to date
type Refresher interface {
	Run(ctx context.Context) error
}

// cache holds the last valid document of a provider
type cache struct {
	kind    string
	metrics metrics

	mu  sync.RWMutex
	doc *Document
}

func newCache(kind string) *cache {
	return &cache{kind: kind, metrics: newMetrics()}
}

// Targets returns a copy of the targets of the cached document
func (c *cache) Targets(_ context.Context) ([]Target, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.doc == nil {
		return nil, ErrNotLoaded
	}
	return cloneTargets(c.doc.Targets), nil
}

// Document returns a copy of the cached document
func (c *cache) Document(_ context.Context) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.doc == nil {
		return Document{}, ErrNotLoaded
	}
	doc := *c.doc
	doc.Targets = cloneTargets(c.doc.Targets)
	return doc, nil
}

func (c *cache) set(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = &doc
	c.metrics.reloads.WithLabelValues(c.kind, resultSuccess).Inc()
}

func (c *cache) failed() {
	c.metrics.reloads.WithLabelValues(c.kind, resultFailure).Inc()
}

// GetMetricCollectors returns the collectors of the provider
func (c *cache) GetMetricCollectors() []prometheus.Collector {
	return []prometheus.Collector{c.metrics.reloads}
}
