// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "restkit",
		Name:      "requests_total",
		Help:      "Completed REST requests",
	},
	[]string{
		"resource",
		"method",
		"status",
	},
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "diffeo",
		Subsystem: "restkit",
		Name:      "request_duration_seconds",
		Help:      "Time to serve REST requests",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{
		"resource",
		"method",
	},
)

var throttledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "restkit",
		Name:      "throttled_total",
		Help:      "REST requests rejected by a throttle",
	},
	[]string{
		"resource",
	},
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, throttledTotal)
}

func observe(resource, method string, status int, elapsed time.Duration) {
	requestsTotal.With(prometheus.Labels{
		"resource": resource,
		"method":   method,
		"status":   strconv.Itoa(status),
	}).Inc()
	requestDuration.With(prometheus.Labels{
		"resource": resource,
		"method":   method,
	}).Observe(elapsed.Seconds())
}
