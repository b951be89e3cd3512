package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describeAll(c prometheus.Collector) string {
	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var sb strings.Builder
	for d := range ch {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")
	require.NotNil(t, c)

	descs := describeAll(c)
	assert.Equal(t, 6, strings.Count(descs, "\n"))

	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
	} {
		assert.Contains(t, descs, `"`+name+`"`)
	}
}

func TestRegisterPoolMetrics_DuplicateFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, nil, "storefront"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "storefront"))
}
