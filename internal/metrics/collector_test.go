package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.contributionsTotal)
	assert.NotNil(t, collector.roundsTotal)
	assert.NotNil(t, collector.generationsTotal)
	assert.NotNil(t, collector.routingDecisions)
}

func TestNewCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { NewCollector(nextTestNamespace(), nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/snapshot", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/api/v1/snapshot", 200, 50*time.Millisecond, 512, 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/api/v1/snapshot", "2xx")))
}

func TestCollector_RecordContribution(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordContribution(true)
	collector.RecordContribution(true)
	collector.RecordContribution(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.contributionsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.contributionsTotal.WithLabelValues("rejected")))
}

func TestCollector_RecordRound(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRound(OutcomeClosed, 4, 3, 20*time.Millisecond)
	collector.RecordRound(OutcomeQuorumNotMet, 0, 0, time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(collector.currentRound))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.roundsTotal.WithLabelValues(OutcomeClosed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.roundsTotal.WithLabelValues(OutcomeQuorumNotMet)))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.roundParticipants))

	collector.SetActiveNodes(7)
	collector.RecordEvictions(2)
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.activeNodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.evictedContributions))
}

func TestCollector_RecordGeneration(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordGeneration(OutcomeOK, 20, 3.5, 10*time.Millisecond)
	collector.RecordGeneration(OutcomeError, 0, 0, time.Millisecond)

	assert.Equal(t, 3.5, testutil.ToFloat64(collector.bestScore))
	assert.Equal(t, 20.0, testutil.ToFloat64(collector.populationSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues(OutcomeError)))
}

func TestCollector_RecordRouting(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRouting(false, 2, 0.8)
	collector.RecordRouting(true, 1, 0.3)
	collector.RecordExpertTransition("idle", "training")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.routingDecisions.WithLabelValues("routed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.routingDecisions.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.expertTransitions.WithLabelValues("idle", "training")))
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("snapshot")
	collector.RecordCacheMiss("snapshot")

	assert.Greater(t, testutil.CollectAndCount(collector.cacheHits), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.cacheMisses), 0)
}

func TestCollector_RecordDatabase(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBQuery("sqlite", "insert_round", 20*time.Millisecond)
	collector.RecordDBConnections("sqlite", 10, 5)

	assert.Greater(t, testutil.CollectAndCount(collector.dbQueryDuration), 0)
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("sqlite")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("POST", "/api/v1/route", 200, time.Millisecond, 64, 256)
			collector.RecordRouting(false, 1, 0.7)
			collector.RecordContribution(true)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.contributionsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.routingDecisions.WithLabelValues("routed")))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	// 已注册到默认 registry，也能注册到自定义 registry
	registry.MustRegister(collector.roundsTotal)
	collector.RecordRound(OutcomeAborted, 0, 0, time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(collector.roundsTotal))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(201))
	assert.Equal(t, "3xx", statusCode(304))
	assert.Equal(t, "4xx", statusCode(409))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(100))
}
