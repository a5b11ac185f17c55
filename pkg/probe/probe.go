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
	"fmt"
	"net/http"
	"time"

	"github.com/caas-team/ironshield/internal/httpclient"
	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/timeline"
)

// DefaultTimeout bounds a single probe if no timeout is given
const DefaultTimeout = 10 * time.Second

// Result is the outcome of a single probe
type Result struct {
	// Classification is either timeline.Reachable or timeline.Unreachable
	Classification timeline.Classification
	// Latency is the wall-clock duration of the attempt, also on failure
	Latency time.Duration
	// StatusCode is 0 if no response was received
	StatusCode int
	// Err is the reason of an unreachable classification
	Err error
}

// Prober checks whether a url is reachable.
// A failed check is reported as data, never as an error.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) Result
}

// ProberFunc is an adapter to use ordinary functions as Prober
type ProberFunc func(ctx context.Context, url string, timeout time.Duration) Result

// Probe calls f(ctx, url, timeout)
func (f ProberFunc) Probe(ctx context.Context, url string, timeout time.Duration) Result {
	return f(ctx, url, timeout)
}

var _ Prober = (*HTTPProber)(nil)

// HTTPProber checks the existence of a url with a HEAD request.
// Any 2xx answer is reachable.
type HTTPProber struct{}

// NewHTTPProber returns a prober using the http.Client of the probe context
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{}
}

// Probe performs the HEAD request. There are no retries.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logger.FromContext(ctx).With("url", url)
	client := httpclient.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		log.Error("Error while creating request", "error", err)
		return Result{Classification: timeline.Unreachable, Latency: time.Since(start), Err: err}
	}

	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		log.Debug("Error while probing target", "error", err)
		return Result{Classification: timeline.Unreachable, Latency: latency, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // HEAD responses carry no body

	res := Result{
		Classification: timeline.Reachable,
		Latency:        latency,
		StatusCode:     resp.StatusCode,
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Debug("Probe was not successful", "status", resp.Status)
		res.Classification = timeline.Unreachable
		res.Err = fmt.Errorf("request failed, status is %s", resp.Status)
	}
	return res
}
