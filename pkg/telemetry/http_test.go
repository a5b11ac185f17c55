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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caas-team/ironshield/pkg/timeline"
)

const collector = "https://otel.home.arpa/v1/uptime"

func ms(v int64) *int64 { return &v }

func TestHTTPForwarder_Forward(t *testing.T) {
	snapshots := []timeline.Snapshot{
		{TargetID: "grafana", Status: timeline.Reachable, Timestamp: 1700000000, ResponseTimeMs: ms(12)},
		{TargetID: "nas", Status: timeline.Pending, Timestamp: 1700000000},
		{TargetID: "plex", Status: timeline.Unreachable, Timestamp: 1700000001, ResponseTimeMs: ms(10000)},
	}

	tests := []struct {
		name      string
		status    int
		wantErr   bool
		wantSites []string
	}{
		{name: "accepted", status: http.StatusAccepted, wantSites: []string{"grafana", "plex"}},
		{name: "collector error", status: http.StatusBadGateway, wantErr: true, wantSites: []string{"grafana", "plex"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewHTTPForwarder(StaticDestination(Destination{Endpoint: collector, DashboardName: "Home Lab"}), time.Second)
			httpmock.ActivateNonDefault(f.client)
			defer httpmock.DeactivateAndReset()

			var got UptimePayload
			httpmock.RegisterResponder(http.MethodPost, collector, func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
				if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
					return nil, err
				}
				return httpmock.NewStringResponse(tt.status, ""), nil
			})

			err := f.Forward(context.Background(), snapshots)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, "Home Lab", got.DashboardName)
			assert.NotZero(t, got.GeneratedAt)
			var sites []string
			for _, u := range got.Uptime {
				sites = append(sites, u.SiteID)
			}
			assert.Equal(t, tt.wantSites, sites)
			require.NotNil(t, got.Uptime[0].ResponseTimeMs)
			assert.Equal(t, int64(12), *got.Uptime[0].ResponseTimeMs)
		})
	}
}

func TestHTTPForwarder_Disabled(t *testing.T) {
	f := NewHTTPForwarder(StaticDestination(Destination{Endpoint: "  "}), time.Second)
	httpmock.ActivateNonDefault(f.client)
	defer httpmock.DeactivateAndReset()

	assert.NoError(t, f.Forward(context.Background(), []timeline.Snapshot{{TargetID: "grafana", Status: timeline.Reachable}}))
	assert.NoError(t, f.ForwardClick(context.Background(), "Grafana", "https://grafana.home.arpa", nil))
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestHTTPForwarder_NetworkError(t *testing.T) {
	f := NewHTTPForwarder(StaticDestination(Destination{Endpoint: collector}), time.Second)
	httpmock.ActivateNonDefault(f.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, collector, httpmock.NewErrorResponder(errors.New("connection refused")))

	assert.Error(t, f.Forward(context.Background(), nil))
}

func TestHTTPForwarder_ForwardClick(t *testing.T) {
	f := NewHTTPForwarder(StaticDestination(Destination{Endpoint: collector, DashboardName: "Home Lab"}), time.Second)
	httpmock.ActivateNonDefault(f.client)
	defer httpmock.DeactivateAndReset()

	var got ClickPayload
	httpmock.RegisterResponder(http.MethodPost, collector, func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	headers := http.Header{}
	headers.Set("User-Agent", "Firefox")
	require.NoError(t, f.ForwardClick(context.Background(), "Grafana", "https://grafana.home.arpa", headers))

	assert.Equal(t, "Grafana", got.SiteName)
	assert.Equal(t, "https://grafana.home.arpa", got.SiteURL)
	assert.Equal(t, []Header{{Name: "user-agent", Value: "Firefox"}}, got.Headers)
}
