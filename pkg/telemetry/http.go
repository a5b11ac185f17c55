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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/timeline"
)

// Destination is the receiver of telemetry payloads
type Destination struct {
	Endpoint      string
	DashboardName string
}

// DestinationFunc resolves the current destination.
// It returns false if telemetry is disabled.
type DestinationFunc func(ctx context.Context) (Destination, bool)

// StaticDestination always resolves to d. An empty endpoint disables telemetry.
func StaticDestination(d Destination) DestinationFunc {
	return func(context.Context) (Destination, bool) {
		return d, strings.TrimSpace(d.Endpoint) != ""
	}
}

// UptimePayload is the body posted for every batch of checks
type UptimePayload struct {
	DashboardName string         `json:"dashboard_name"`
	GeneratedAt   int64          `json:"generated_at"`
	Uptime        []UptimeStatus `json:"uptime"`
}

// UptimeStatus is the latest status of a single target
type UptimeStatus struct {
	SiteID         string                  `json:"site_id"`
	Status         timeline.Classification `json:"status"`
	Timestamp      int64                   `json:"timestamp"`
	ResponseTimeMs *int64                  `json:"response_time_ms"`
}

// Header is a single request header of a click
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ClickPayload is the body posted for a bookmark click
type ClickPayload struct {
	DashboardName string   `json:"dashboard_name"`
	GeneratedAt   int64    `json:"generated_at"`
	SiteName      string   `json:"site_name"`
	SiteURL       string   `json:"site_url"`
	Headers       []Header `json:"headers"`
}

var _ Forwarder = (*HTTPForwarder)(nil)

// HTTPForwarder posts json payloads to a collector endpoint
type HTTPForwarder struct {
	destination DestinationFunc
	client      *http.Client
}

// NewHTTPForwarder creates a forwarder posting to the resolved destination
func NewHTTPForwarder(destination DestinationFunc, timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		destination: destination,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forward posts the resolved snapshots. Pending snapshots are left out.
func (h *HTTPForwarder) Forward(ctx context.Context, snapshots []timeline.Snapshot) error {
	dest, ok := h.destination(ctx)
	if !ok {
		return nil
	}

	payload := UptimePayload{
		DashboardName: dest.DashboardName,
		GeneratedAt:   time.Now().Unix(),
		Uptime:        make([]UptimeStatus, 0, len(snapshots)),
	}
	for _, s := range snapshots {
		if !s.Status.Resolved() {
			continue
		}
		payload.Uptime = append(payload.Uptime, UptimeStatus{
			SiteID:         s.TargetID,
			Status:         s.Status,
			Timestamp:      s.Timestamp,
			ResponseTimeMs: s.ResponseTimeMs,
		})
	}
	if len(payload.Uptime) == 0 {
		logger.FromContext(ctx).Debug("No resolved snapshots; sending empty telemetry payload")
	}

	return h.post(ctx, dest.Endpoint, payload)
}

// ForwardClick posts a bookmark click
func (h *HTTPForwarder) ForwardClick(ctx context.Context, siteName, siteURL string, headers http.Header) error {
	dest, ok := h.destination(ctx)
	if !ok {
		return nil
	}

	payload := ClickPayload{
		DashboardName: dest.DashboardName,
		GeneratedAt:   time.Now().Unix(),
		SiteName:      siteName,
		SiteURL:       siteURL,
		Headers:       make([]Header, 0, len(headers)),
	}
	for name, values := range headers {
		for _, v := range values {
			payload.Headers = append(payload.Headers, Header{Name: strings.ToLower(name), Value: v})
		}
	}

	return h.post(ctx, dest.Endpoint, payload)
}

func (h *HTTPForwarder) post(ctx context.Context, endpoint string, payload any) error {
	log := logger.FromContext(ctx).With("endpoint", endpoint)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("Could not create telemetry request", "error", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telemetry: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if cErr := Body.Close(); cErr != nil {
			log.Error("Failed to close response body", "error", cErr)
		}
	}(res.Body)

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("telemetry endpoint responded with status %s", res.Status)
	}
	log.Debug("Sent telemetry payload")
	return nil
}
