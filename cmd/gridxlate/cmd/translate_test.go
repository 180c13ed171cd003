package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/gridxlate/internal/metrics"
	"github.com/solatis/gridxlate/internal/rules"
)

type closer struct {
	err    error
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestCloseOutput(t *testing.T) {
	flushFailed := errors.New("no space left on device")

	var err error
	c := &closer{err: flushFailed}
	closeOutput(c, &err)
	assert.True(t, c.closed)
	assert.ErrorIs(t, err, flushFailed)

	writeFailed := errors.New("write failed")
	err = writeFailed
	closeOutput(&closer{err: flushFailed}, &err)
	assert.Same(t, writeFailed, err)

	err = nil
	closeOutput(&closer{}, &err)
	assert.NoError(t, err)
}

func TestTranslateFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "pool.json")
	require.NoError(t, os.WriteFile(input, []byte(`{
  "Generator": [
    {"name": "Gen1", "capacity": 500, "status": "active"},
    {"name": "Gen2", "capacity": 300, "status": "inactive"}
  ]
}`), 0o600))

	pool, err := readPool(input)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	rule := rules.MustNewRule(rules.Definition{
		Name:       "thermal",
		SourceType: "Generator",
		TargetType: "ThermalStandard",
		FieldMap:   rules.FieldMap{{Target: "name", Source: "name"}, {Target: "rating", Source: "capacity"}},
		Filter:     rules.NewLeaf("status", rules.OpEq, "active"),
	})

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	require.NoError(t, err)

	result, err := rules.NewEngine(rules.WithMetrics(collector)).ApplyRulesToContext([]*rules.Rule{rule}, pool)
	require.NoError(t, err)

	summary := summarize(result)
	assert.Equal(t, 1, summary.Converted)
	require.Len(t, summary.Rules, 1)
	require.Len(t, summary.Rules[0].Skips, 1)
	assert.Equal(t, "Gen2", summary.Rules[0].Skips[0].Candidate)
	assert.Equal(t, rules.ReasonFilterMismatch, summary.Rules[0].Skips[0].Reason)

	output := filepath.Join(dir, "out.json")
	require.NoError(t, writeJSON(output, summary))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rating": 500`)

	metricsFile := filepath.Join(dir, "metrics.prom")
	require.NoError(t, writeMetrics(metricsFile, reg))
	data, err = os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gridxlate_rule_converted_total{rule="thermal"} 1`)
}

func TestWriteJSON_CreateFails(t *testing.T) {
	err := writeJSON(filepath.Join(t.TempDir(), "missing", "out.json"), map[string]any{})
	assert.Error(t, err)
}
