// Package metrics exposes Prometheus counters for session resolution, sign-in and email delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the narrow interface consumed by the domain services.
type Recorder interface {
	RecordResolution(outcome string)
	RecordStaleDrop()
	RecordSignIn(outcome string)
	RecordEmail(status string)
}

// Collector records service metrics on a Prometheus registry.
type Collector struct {
	resolutions *prometheus.CounterVec
	staleDrops  prometheus.Counter
	signIns     *prometheus.CounterVec
	emails      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_session_resolutions_total",
			Help: "Session resolutions by outcome.",
		}, []string{"outcome"}),
		staleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alumni_session_stale_results_total",
			Help: "Resolution results discarded because a newer one was already published.",
		}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_sign_in_attempts_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_rsvp_emails_total",
			Help: "RSVP confirmation emails by delivery status.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.resolutions, c.staleDrops, c.signIns, c.emails)
	return c
}

func (c *Collector) RecordResolution(outcome string) {
	c.resolutions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordStaleDrop() {
	c.staleDrops.Inc()
}

func (c *Collector) RecordSignIn(outcome string) {
	c.signIns.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordEmail(status string) {
	c.emails.WithLabelValues(status).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordResolution(string) {}
func (Nop) RecordStaleDrop()        {}
func (Nop) RecordSignIn(string)     {}
func (Nop) RecordEmail(string)      {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
