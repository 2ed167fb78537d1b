// Copyright 2025 LazySync Authors
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

// Package metrics provides Prometheus metrics for the lazysync client daemon.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazysync_cache_lookups_total",
			Help: "Snapshot cache lookups by result",
		},
		[]string{"result"}, // hit | miss
	)

	wireRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazysync_wire_requests_total",
			Help: "Requests written to the provider connection",
		},
	)

	requestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazysync_request_outcomes_total",
			Help: "Resolved pending requests by outcome",
		},
		[]string{"outcome"}, // ok | not_found | permission_denied | other | timed_out | connection_lost
	)

	roundTripDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lazysync_round_trip_duration_seconds",
			Help:    "Wire round-trip time from send to resolution",
			Buckets: prometheus.DefBuckets,
		},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazysync_reconnects_total",
			Help: "Successful reconnections to the provider",
		},
	)

	connectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazysync_connection_up",
			Help: "1 when the provider connection is established",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazysync_http_requests_total",
			Help: "HTTP facade requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lazysync_http_request_duration_seconds",
			Help:    "HTTP facade request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// CacheHit records a snapshot served without a wire round-trip.
func CacheHit() { cacheLookupsTotal.WithLabelValues("hit").Inc() }

// CacheMiss records a lookup that needed a wire request.
func CacheMiss() { cacheLookupsTotal.WithLabelValues("miss").Inc() }

// WireRequest records a request frame written to the provider.
func WireRequest() { wireRequestsTotal.Inc() }

// RequestOutcome records the terminal outcome of a pending request.
func RequestOutcome(outcome string) { requestOutcomesTotal.WithLabelValues(outcome).Inc() }

// ObserveRoundTrip records the time from send to resolution.
func ObserveRoundTrip(d time.Duration) { roundTripDuration.Observe(d.Seconds()) }

// Reconnected records a successful reconnection.
func Reconnected() { reconnectsTotal.Inc() }

// SetConnected publishes the current connection state.
func SetConnected(up bool) {
	if up {
		connectionState.Set(1)
	} else {
		connectionState.Set(0)
	}
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request counting and latency
// observation. The path label is the route pattern, not the raw URL.
func InstrumentHandler(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	}
}
