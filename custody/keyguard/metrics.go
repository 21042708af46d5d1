// Copyright 2026 The Shardkeep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keyguard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	reconstructions *prometheus.CounterVec
	latency         prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		reconstructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardkeep",
			Name:      "reconstructions_total",
			Help:      "Key reconstructions by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shardkeep",
			Name:      "reconstruction_seconds",
			Help:      "Time from lock request to key wipe.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.reconstructions, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(outcome string, d time.Duration) {
	m.reconstructions.WithLabelValues(outcome).Inc()
	m.latency.Observe(d.Seconds())
}
