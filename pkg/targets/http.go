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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caas-team/ironshield/internal/helper"
	"github.com/caas-team/ironshield/internal/logger"
)

var (
	_ DocumentProvider = (*HTTPProvider)(nil)
	_ Refresher        = (*HTTPProvider)(nil)
)

// HTTPConfig configures the http provider
type HTTPConfig struct {
	// URL of the remote yaml document
	URL string `json:"url" yaml:"url" mapstructure:"url"`
	// Token is sent as bearer token if set
	Token string `json:"token" yaml:"token" mapstructure:"token"`
	// Interval between two refreshes
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	// Timeout of a single request
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// Retry configures the retries of a failed refresh
	Retry helper.RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// HTTPProvider loads the document from a remote endpoint and refreshes it periodically.
// The last valid document is kept when a refresh fails.
type HTTPProvider struct {
	*cache
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPProvider creates a provider for the remote document
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	return &HTTPProvider{
		cache: newCache("http"),
		cfg:   cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Load fetches the document, retrying as configured
func (h *HTTPProvider) Load(ctx context.Context) error {
	var doc Document
	fetchRetry := helper.Retry(func(ctx context.Context) error {
		var err error
		doc, err = h.fetch(ctx)
		return err
	}, h.cfg.Retry)

	if err := fetchRetry(ctx); err != nil {
		h.failed()
		return err
	}
	h.set(doc)
	return nil
}

// Run refreshes the document every interval until the context is canceled
func (h *HTTPProvider) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx).With("url", h.cfg.URL)

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h.Load(ctx); err != nil {
				log.Warn("Could not refresh remote target document", "error", err)
				continue
			}
			log.Debug("Successfully refreshed remote target document")
		}
	}
}

// fetch gets and parses the remote document
func (h *HTTPProvider) fetch(ctx context.Context) (Document, error) {
	log := logger.FromContext(ctx).With("url", h.cfg.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.URL, http.NoBody)
	if err != nil {
		log.Error("Could not create http GET request", "error", err.Error())
		return Document{}, err
	}
	if h.cfg.Token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", h.cfg.Token))
	}

	res, err := h.client.Do(req) //nolint:bodyclose // closed below
	if err != nil {
		log.Error("Http get request failed", "error", err.Error())
		return Document{}, err
	}
	defer func(Body io.ReadCloser) {
		if cErr := Body.Close(); cErr != nil {
			log.Error("Failed to close response body", "error", cErr.Error())
		}
	}(res.Body)

	if res.StatusCode != http.StatusOK {
		log.Error("Http get request failed", "status", res.Status)
		return Document{}, fmt.Errorf("request failed, status is %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		log.Error("Could not read response body", "error", err.Error())
		return Document{}, err
	}

	return Parse(body)
}
