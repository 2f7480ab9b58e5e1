package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("arogya_test", zap.NewNop())

	c.RecordHTTPRequest("POST", "/chat", "200", 120*time.Millisecond)
	c.RecordHTTPRequest("POST", "/chat", "200", 80*time.Millisecond)
	c.RecordCacheHit("l1")
	c.RecordCacheMiss("l2")
	c.RecordCacheError("timeout")
	c.RecordLLMRequest("primary", "success")
	c.RecordLLMFallback()
	c.SetDBConnected(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/chat", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheHits.WithLabelValues("l1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheErrors.WithLabelValues("timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.llmFallbacks))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.dbConnected))

	c.SetDBConnected(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.dbConnected))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("arogya_test", zap.NewNop())
	b := NewCollector("arogya_test", zap.NewNop())
	a.RecordCacheHit("l1")
	assert.Equal(t, float64(0), testutil.ToFloat64(b.cacheHits.WithLabelValues("l1")))
}
