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

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	up           *prometheus.GaugeVec
	availability *prometheus.GaugeVec
	duration     *prometheus.HistogramVec
	ticks        prometheus.Counter
	skipped      prometheus.Counter
	inFlight     prometheus.Gauge
}

func newMetrics() metrics {
	return metrics{
		up: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ironshield_target_up",
				Help: "Result of the latest check of the target (1 reachable, 0 unreachable)",
			},
			[]string{"target"},
		),
		availability: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ironshield_target_availability_percent",
				Help: "Share of reachable checks in the history of the target",
			},
			[]string{"target"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ironshield_probe_duration_seconds",
				Help:    "Latency of the probes of the target",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ironshield_ticks_total",
			Help: "Number of scheduler ticks",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ironshield_ticks_skipped_total",
			Help: "Number of ticks skipped because the targets could not be read",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ironshield_probes_in_flight",
			Help: "Number of probes currently running",
		}),
	}
}

// remove deletes all series of the target
func (m *metrics) remove(target string) {
	m.up.DeleteLabelValues(target)
	m.availability.DeleteLabelValues(target)
	m.duration.DeleteLabelValues(target)
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.up, m.availability, m.duration, m.ticks, m.skipped, m.inFlight}
}
