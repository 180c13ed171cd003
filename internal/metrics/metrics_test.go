package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleApplied(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RuleApplied("thermal", 3, map[string]int{"filter_mismatch": 2})
	c.RuleApplied("thermal", 1, nil)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.converted.WithLabelValues("thermal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.skipped.WithLabelValues("thermal", "filter_mismatch")))

	expected := `
# HELP gridxlate_rule_converted_total Candidates converted into target records, by rule.
# TYPE gridxlate_rule_converted_total counter
gridxlate_rule_converted_total{rule="thermal"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gridxlate_rule_converted_total"))
}

func TestTransferFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.TransferFinished(map[string]int{"transferred": 5, "deduplicated": 2}, 250*time.Millisecond)
	c.TransferFinished(nil, time.Second)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.transferRows.WithLabelValues("transferred")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transferRows.WithLabelValues("deduplicated")))

	count, err := testutil.GatherAndCount(reg, "gridxlate_transfer_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RuleApplied("thermal", 1, map[string]int{"type_mismatch": 1})
		c.TransferFinished(map[string]int{"transferred": 1}, time.Second)
	})
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
