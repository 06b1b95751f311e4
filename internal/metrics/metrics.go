// Package metrics collects Prometheus metrics for the API server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the server's Prometheus metrics.
type Collector struct {
	httpStatus    *prometheus.CounterVec
	relationships *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
	events        *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		relationships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_relationship_mutations_total",
			Help: "Committed follow, unfollow, like and unlike operations.",
		}, []string{"kind"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_auth_failures_total",
			Help: "Rejected credentials by reason.",
		}, []string{"reason"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_activity_events_total",
			Help: "Activity events handed to the message queue by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(c.httpStatus, c.relationships, c.authFailures, c.events)
	return c
}

// RecordHTTPStatus counts a response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRelationship counts a committed relationship mutation.
func (c *Collector) RecordRelationship(kind string) {
	c.relationships.WithLabelValues(kind).Inc()
}

// RecordAuthFailure counts a rejected login or token.
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordEvent counts a publish attempt.
func (c *Collector) RecordEvent(kind string, delivered bool) {
	outcome := "published"
	if !delivered {
		outcome = "failed"
	}
	c.events.WithLabelValues(kind, outcome).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
