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

package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caas-team/ironshield/internal/httpclient"
	"github.com/caas-team/ironshield/pkg/timeline"
)

func TestHTTPProber_Probe(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	tests := []struct {
		name       string
		responder  httpmock.Responder
		want       timeline.Classification
		wantStatus int
		wantErr    bool
	}{
		{
			name:       "ok",
			responder:  httpmock.NewStringResponder(http.StatusOK, ""),
			want:       timeline.Reachable,
			wantStatus: http.StatusOK,
		},
		{
			name:       "no content is a success",
			responder:  httpmock.NewStringResponder(http.StatusNoContent, ""),
			want:       timeline.Reachable,
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "server error",
			responder:  httpmock.NewStringResponder(http.StatusServiceUnavailable, ""),
			want:       timeline.Unreachable,
			wantStatus: http.StatusServiceUnavailable,
			wantErr:    true,
		},
		{
			name:       "not found",
			responder:  httpmock.NewStringResponder(http.StatusNotFound, ""),
			want:       timeline.Unreachable,
			wantStatus: http.StatusNotFound,
			wantErr:    true,
		},
		{
			name:      "network error",
			responder: httpmock.NewErrorResponder(errors.New("connection refused")),
			want:      timeline.Unreachable,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const url = "https://grafana.home.arpa/"
			httpmock.RegisterResponder(http.MethodHead, url, tt.responder)

			res := NewHTTPProber().Probe(context.Background(), url, time.Second)

			assert.Equal(t, tt.want, res.Classification)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			if tt.wantErr {
				assert.Error(t, res.Err)
			} else {
				assert.NoError(t, res.Err)
			}
			assert.GreaterOrEqual(t, res.Latency, time.Duration(0))
		})
	}

	assert.Equal(t, len(tests), httpmock.GetTotalCallCount())
}

func TestHTTPProber_Probe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx := httpclient.IntoContext(context.Background(), srv.Client())
	res := NewHTTPProber().Probe(ctx, srv.URL, 50*time.Millisecond)

	assert.Equal(t, timeline.Unreachable, res.Classification)
	require.Error(t, res.Err)
	assert.GreaterOrEqual(t, res.Latency, 50*time.Millisecond)
}

func TestHTTPProber_Probe_InvalidURL(t *testing.T) {
	res := NewHTTPProber().Probe(context.Background(), "://missing-scheme", time.Second)
	assert.Equal(t, timeline.Unreachable, res.Classification)
	assert.Error(t, res.Err)
}

func TestProberFunc(t *testing.T) {
	var gotURL string
	p := ProberFunc(func(_ context.Context, url string, _ time.Duration) Result {
		gotURL = url
		return Result{Classification: timeline.Reachable}
	})

	res := p.Probe(context.Background(), "http://nas.home.arpa", time.Second)
	assert.Equal(t, "http://nas.home.arpa", gotURL)
	assert.Equal(t, timeline.Reachable, res.Classification)
}
