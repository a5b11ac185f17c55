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

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

type metrics struct {
	reloads *prometheus.CounterVec
}

func newMetrics() metrics {
	return metrics{
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironshield_target_document_loads_total",
				Help: "Number of target document loads by provider and result",
			},
			[]string{"provider", "result"},
		),
	}
}
