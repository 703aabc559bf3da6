// ARONIA - Realtime Peer-to-Peer Agent Communication Fabric
// Copyright (C) 2025 ARONIA-project
//
// This file is part of ARONIA.
//
// ARONIA is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ARONIA is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ARONIA. If not, see <https://www.gnu.org/licenses/>.

// Package metrics provides prometheus instrumentation for an ARONIA node:
// session lifecycle, frame throughput by type, introduction outcomes,
// RPC latency, and backpressure. The registry is scoped to one instance
// per Node rather than a package global, since a process may run more than
// one node (tests routinely do) and prometheus panics on duplicate
// registration against a shared default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aronia"

// Registry holds every counter/gauge/histogram an ARONIA node reports.
// Construct one with NewRegistry per Node.
type Registry struct {
	reg *prometheus.Registry

	// SessionsCreated counts admission outcomes, labeled "admitted" or
	// "rejected".
	SessionsCreated *prometheus.CounterVec
	// SessionsActive is the current size of the node's active-sessions
	// table.
	SessionsActive prometheus.Gauge
	// SessionsClosed counts session teardowns.
	SessionsClosed prometheus.Counter

	// FramesSent/FramesReceived count frames by type label.
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec

	// RequestDuration observes RPC round-trip latency by method name for
	// successfully resolved requests.
	RequestDuration *prometheus.HistogramVec
	// RequestsTimedOut counts deadline-elapsed requests.
	RequestsTimedOut prometheus.Counter

	// IntroductionsProcessed counts introduction outcomes, labeled
	// "accepted", "rejected", or "pending".
	IntroductionsProcessed *prometheus.CounterVec

	// BackpressureTimeouts counts parked writes that exceeded their
	// timeout.
	BackpressureTimeouts prometheus.Counter

	// WhitelistSize tracks the current admission whitelist size.
	WhitelistSize prometheus.Gauge
}

// NewRegistry builds a fresh, independent prometheus registry and every
// collector a node reports through it.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		reg: reg,

		SessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total peer sessions by admission outcome.",
		}, []string{"outcome"}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Currently active peer sessions.",
		}),

		SessionsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Total peer sessions torn down.",
		}),

		FramesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Total frames sent, by type.",
		}, []string{"type"}),

		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Total frames received, by type.",
		}, []string{"type"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "RPC request round-trip latency, by method.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"method"}),

		RequestsTimedOut: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_timeouts_total",
			Help:      "Total RPC requests that failed with RequestTimeout.",
		}),

		IntroductionsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "introductions",
			Name:      "processed_total",
			Help:      "Total introductions processed, by outcome.",
		}, []string{"outcome"}),

		BackpressureTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "backpressure_timeouts_total",
			Help:      "Total parked writes that exceeded the backpressure timeout.",
		}),

		WhitelistSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trust",
			Name:      "whitelist_size",
			Help:      "Current admission whitelist size.",
		}),
	}
}

// Handler serves this registry's collectors for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer runs a standalone metrics HTTP server for this registry. It
// blocks until the server errors or is shut down by the caller closing the
// listener elsewhere; callers typically run it in a goroutine.
func (r *Registry) StartServer(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	return http.ListenAndServe(addr, mux)
}
