// Package metrics exposes Prometheus metrics for sends, imports and the HTTP
// API.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for AgentPost
type Metrics struct {
	// Email counters
	EmailsSentTotal   *prometheus.CounterVec
	EmailsFailedTotal *prometheus.CounterVec

	// Campaign counters
	CampaignsDispatchedTotal prometheus.Counter

	// Contact counters
	ContactsImportedTotal  *prometheus.CounterVec
	ContactsSyncedTotal    *prometheus.CounterVec
	ContactFormSubmissions prometheus.Counter
	UnsubscribesTotal      prometheus.Counter

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentpost_emails_sent_total",
				Help: "Total number of successfully delivered emails",
			},
			[]string{"provider"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentpost_emails_failed_total",
				Help: "Total number of failed email sends",
			},
			[]string{"provider"},
		),
		CampaignsDispatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentpost_campaigns_dispatched_total",
				Help: "Total number of campaign dispatch runs",
			},
		),
		ContactsImportedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentpost_contacts_imported_total",
				Help: "Total number of contacts imported from providers",
			},
			[]string{"provider"},
		),
		ContactsSyncedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentpost_contacts_synced_total",
				Help: "Total number of contacts pushed to providers",
			},
			[]string{"provider"},
		),
		ContactFormSubmissions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentpost_contact_form_submissions_total",
				Help: "Total number of public contact form submissions",
			},
		),
		UnsubscribesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentpost_unsubscribes_total",
				Help: "Total number of unsubscribe link visits that opted a contact out",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentpost_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentpost_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentpost_api_errors_total",
				Help: "Total number of API error responses",
			},
			[]string{"error_type"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.CampaignsDispatchedTotal,
		m.ContactsImportedTotal,
		m.ContactsSyncedTotal,
		m.ContactFormSubmissions,
		m.UnsubscribesTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal installs m as the process-wide metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the process-wide metrics instance, or nil if unset
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncEmailsSent increments the sent counter for a provider
func IncEmailsSent(provider string) {
	if m := Global(); m != nil {
		m.EmailsSentTotal.WithLabelValues(provider).Inc()
	}
}

// IncEmailsFailed increments the failed counter for a provider
func IncEmailsFailed(provider string) {
	if m := Global(); m != nil {
		m.EmailsFailedTotal.WithLabelValues(provider).Inc()
	}
}

// IncCampaignsDispatched increments the campaign dispatch counter
func IncCampaignsDispatched() {
	if m := Global(); m != nil {
		m.CampaignsDispatchedTotal.Inc()
	}
}

// AddContactsImported adds to the import counter for a provider
func AddContactsImported(provider string, n int) {
	if m := Global(); m != nil {
		m.ContactsImportedTotal.WithLabelValues(provider).Add(float64(n))
	}
}

// AddContactsSynced adds to the push-sync counter for a provider
func AddContactsSynced(provider string, n int) {
	if m := Global(); m != nil {
		m.ContactsSyncedTotal.WithLabelValues(provider).Add(float64(n))
	}
}

// IncContactFormSubmissions increments the public form counter
func IncContactFormSubmissions() {
	if m := Global(); m != nil {
		m.ContactFormSubmissions.Inc()
	}
}

// IncUnsubscribes increments the unsubscribe counter
func IncUnsubscribes() {
	if m := Global(); m != nil {
		m.UnsubscribesTotal.Inc()
	}
}
