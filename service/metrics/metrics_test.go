package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnFreshRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	// promauto panics on duplicate or invalid registration.
	assert.NotPanics(t, func() {
		NewMetrics(registry)
	})
}

func TestRecordDetailFallback_CountsWithoutLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordDetailFallback()
	m.RecordDetailFallback()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.transactionDetailFallbacks))

	// The counter must stay label-free: per-wallet labels would grow the
	// series set without bound.
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "transaction_detail_fallbacks_total" {
			continue
		}
		require.Len(t, family.GetMetric(), 1)
		assert.Empty(t, family.GetMetric()[0].GetLabel())
		return
	}
	t.Fatal("transaction_detail_fallbacks_total not registered")
}

func TestRecordRPCCall_LabelsByMethodStatusEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordRPCCall("getBalance", "success", "mainnet", 0.05)
	m.RecordRPCCall("getBalance", "error", "mainnet", 0.05)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.solanaRPCCallsTotal.WithLabelValues("getBalance", "success", "mainnet")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.solanaRPCCallsTotal.WithLabelValues("getBalance", "error", "mainnet")))
}

func TestRecordHTTPRequest_GroupsStatusByClass(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordHTTPRequest("wallet_summary", "GET", 200, 0.01)
	m.RecordHTTPRequest("wallet_summary", "GET", 404, 0.01)
	m.RecordHTTPRequest("wallet_summary", "GET", 503, 0.01)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("wallet_summary", "GET", "2xx")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("wallet_summary", "GET", "4xx")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("wallet_summary", "GET", "5xx")))
}
