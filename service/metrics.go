// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the ingest counters. Each server carries its own registry
// so tests can read counters without process-global state.
type Metrics struct {
	registry *prometheus.Registry

	Requests   prometheus.Counter
	Success    prometheus.Counter
	Failure    prometheus.Counter
	Duplicates prometheus.Counter
}

// NewMetrics creates and registers the ingest counters on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datakiln_ingest_requests_total",
			Help: "Total ingest requests received.",
		}),
		Success: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datakiln_ingest_success_total",
			Help: "Ingest requests that created a new asset.",
		}),
		Failure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datakiln_ingest_failure_total",
			Help: "Ingest requests that failed.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datakiln_ingest_duplicate_total",
			Help: "Ingest requests that resolved to an existing asset.",
		}),
	}

	m.registry.MustRegister(m.Requests, m.Success, m.Failure, m.Duplicates)
	return m
}

// Registry returns the registry the counters are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
