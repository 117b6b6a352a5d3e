package metrics

import "github.com/prometheus/client_golang/prometheus"

// PriceRefreshMetrics exposes the price refresher's fetch outcomes and pacing.
type PriceRefreshMetrics struct {
	outcomes   *prometheus.CounterVec
	targetRate *prometheus.GaugeVec
	inFlight   *prometheus.GaugeVec
}

// NewPriceRefreshMetrics registers the price refresh metrics on reg. A nil reg
// returns a no-op recorder.
func NewPriceRefreshMetrics(reg prometheus.Registerer) *PriceRefreshMetrics {
	if reg == nil {
		return &PriceRefreshMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordo_price_refresh_outcomes_total",
		Help: "Price fetch outcomes per vendor.",
	}, []string{"vendor", "outcome"})
	targetRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ordo_price_refresh_target_rate",
		Help: "Current target request rate per vendor in requests per second.",
	}, []string{"vendor"})
	inFlight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ordo_price_refresh_in_flight_workers",
		Help: "Price fetch workers currently running per vendor.",
	}, []string{"vendor"})
	reg.MustRegister(outcomes, targetRate, inFlight)
	return &PriceRefreshMetrics{outcomes: outcomes, targetRate: targetRate, inFlight: inFlight}
}

// IncOutcome counts one resolved fetch.
func (p *PriceRefreshMetrics) IncOutcome(vendor, outcome string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(vendor), normalizeLabel(outcome)).Inc()
}

// SetTargetRate records the controller's current target.
func (p *PriceRefreshMetrics) SetTargetRate(vendor string, rate float64) {
	if p == nil || p.targetRate == nil {
		return
	}
	p.targetRate.WithLabelValues(normalizeLabel(vendor)).Set(rate)
}

// SetInFlight records the number of running workers.
func (p *PriceRefreshMetrics) SetInFlight(vendor string, n int64) {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.WithLabelValues(normalizeLabel(vendor)).Set(float64(n))
}
