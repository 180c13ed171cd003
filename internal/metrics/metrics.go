// Package metrics provides prometheus collectors for rule translation and
// time-series transfers.
//
// Collectors are registered on a caller-supplied Registerer; nothing touches
// the global default registry. A nil *Collector is valid and records nothing,
// so library code can call it unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gridxlate"

// Collector groups the counters and histograms emitted by gridxlate.
type Collector struct {
	converted        *prometheus.CounterVec
	skipped          *prometheus.CounterVec
	transferRows     *prometheus.CounterVec
	transferDuration prometheus.Histogram
}

// New creates a Collector and registers it on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		converted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_converted_total",
			Help:      "Candidates converted into target records, by rule.",
		}, []string{"rule"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_skipped_total",
			Help:      "Candidates skipped, by rule and skip kind.",
		}, []string{"rule", "kind"}),
		transferRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_rows_total",
			Help:      "Time-series association rows handled by transfers, by outcome.",
		}, []string{"outcome"}),
		transferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Wall time of committed or rolled back transfers.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, col := range []prometheus.Collector{c.converted, c.skipped, c.transferRows, c.transferDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RuleApplied records one rule's converted count and skip counts by kind.
func (c *Collector) RuleApplied(rule string, converted int, skipped map[string]int) {
	if c == nil {
		return
	}
	c.converted.WithLabelValues(rule).Add(float64(converted))
	for kind, n := range skipped {
		c.skipped.WithLabelValues(rule, kind).Add(float64(n))
	}
}

// TransferFinished records row counts per outcome and the elapsed time.
func (c *Collector) TransferFinished(rows map[string]int, elapsed time.Duration) {
	if c == nil {
		return
	}
	for outcome, n := range rows {
		c.transferRows.WithLabelValues(outcome).Add(float64(n))
	}
	c.transferDuration.Observe(elapsed.Seconds())
}
