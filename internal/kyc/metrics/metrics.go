package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the case engine. All methods are safe
// on a nil receiver.
type Metrics struct {
	// Screening cycles by outcome: verified, pending, rejected, failed
	ScreeningOutcome *prometheus.CounterVec
	ScreeningLatency prometheus.Histogram

	// Vendor calls by endpoint and outcome: ok, rejected, unavailable, timeout, short_circuit
	VendorRequests *prometheus.CounterVec
	VendorLatency  *prometheus.HistogramVec
	VendorCircuit  prometheus.Gauge

	Transitions *prometheus.CounterVec

	RescreeningEnqueued prometheus.Counter
	RescreeningFailed   prometheus.Counter
	ExpiringDocuments   *prometheus.GaugeVec

	AlertsPublished *prometheus.CounterVec
}

// New registers the case engine metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScreeningOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_screening_outcomes_total",
			Help: "Screening cycles by resulting KYC status",
		}, []string{"outcome"}),

		ScreeningLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_screening_duration_seconds",
			Help:    "Duration of a full screening cycle including the vendor call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),

		VendorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_vendor_requests_total",
			Help: "Screening vendor requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		VendorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_vendor_request_duration_seconds",
			Help:    "Screening vendor request latency by endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		VendorCircuit: f.NewGauge(prometheus.GaugeOpts{
			Name: "kyc_vendor_circuit_open",
			Help: "1 while the screening vendor circuit breaker is open",
		}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_case_transitions_total",
			Help: "Case state transitions by source and target state",
		}, []string{"from", "to"}),

		RescreeningEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_rescreening_enqueued_total",
			Help: "Subjects enqueued for periodic rescreening",
		}),

		RescreeningFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_rescreening_failed_total",
			Help: "Periodic rescreenings that ended in error",
		}),

		ExpiringDocuments: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kyc_id_documents",
			Help: "Primary ID documents found by the last expiry sweep",
		}, []string{"status"}), // status: "expiring", "expired"

		AlertsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_alerts_published_total",
			Help: "Compliance alerts published by severity",
		}, []string{"severity"}),
	}
}

func (m *Metrics) IncScreeningOutcome(outcome string) {
	if m != nil {
		m.ScreeningOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveScreeningLatency(d time.Duration) {
	if m != nil {
		m.ScreeningLatency.Observe(d.Seconds())
	}
}

// ObserveVendorCall records one vendor request.
func (m *Metrics) ObserveVendorCall(endpoint, outcome string, d time.Duration) {
	if m != nil {
		m.VendorRequests.WithLabelValues(endpoint, outcome).Inc()
		m.VendorLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

func (m *Metrics) SetVendorCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.VendorCircuit.Set(1)
		return
	}
	m.VendorCircuit.Set(0)
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncRescreeningEnqueued() {
	if m != nil {
		m.RescreeningEnqueued.Inc()
	}
}

func (m *Metrics) IncRescreeningFailed() {
	if m != nil {
		m.RescreeningFailed.Inc()
	}
}

func (m *Metrics) SetExpiringDocuments(expiring, expired int) {
	if m != nil {
		m.ExpiringDocuments.WithLabelValues("expiring").Set(float64(expiring))
		m.ExpiringDocuments.WithLabelValues("expired").Set(float64(expired))
	}
}

func (m *Metrics) IncAlert(severity string) {
	if m != nil {
		m.AlertsPublished.WithLabelValues(severity).Inc()
	}
}
