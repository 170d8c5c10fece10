// Package metrics registers the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "programhub_attendance_marks_total",
		Help: "Attendance mark attempts by method and result.",
	}, []string{"method", "result"})

	QRIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "programhub_qr_codes_issued_total",
		Help: "Session QR codes issued.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "programhub_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "programhub_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "programhub_emails_total",
		Help: "Email jobs processed by result.",
	}, []string{"result"})
)
