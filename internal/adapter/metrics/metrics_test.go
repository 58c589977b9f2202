package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/statesync/internal/adapter/metrics"
	"github.com/alanyang/statesync/internal/domain/delivery"
)

func TestCollector_CountsOutcomes(t *testing.T) {
	c := metrics.NewCollector()
	ctx := context.Background()

	c.RecordDelivery(ctx, delivery.Report{Channel: "/sync", Outcome: delivery.OutcomeDelivered, Publish: time.Millisecond})
	c.RecordDelivery(ctx, delivery.Report{Channel: "/sync", Outcome: delivery.OutcomeDelivered, Publish: time.Millisecond})
	c.RecordDelivery(ctx, delivery.Report{Channel: "/sync", Outcome: delivery.OutcomePublishFailed, Err: errors.New("x")})
	c.RecordDelivery(ctx, delivery.Report{Outcome: delivery.OutcomeDropped})

	expected := `
# HELP statesync_deliveries_total Notifications by delivery outcome.
# TYPE statesync_deliveries_total counter
statesync_deliveries_total{outcome="delivered"} 2
statesync_deliveries_total{outcome="dropped"} 1
statesync_deliveries_total{outcome="publish_failed"} 1
statesync_deliveries_total{outcome="rejected"} 0
statesync_deliveries_total{outcome="resolve_failed"} 0
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected), "statesync_deliveries_total")
	require.NoError(t, err)
}

func TestCollector_TimingOnlyForWorkerOutcomes(t *testing.T) {
	c := metrics.NewCollector()
	ctx := context.Background()

	c.RecordDelivery(ctx, delivery.Report{Channel: "/sync", Outcome: delivery.OutcomeDelivered, Waited: time.Millisecond, Publish: 2 * time.Millisecond, Total: 3 * time.Millisecond})
	c.RecordDelivery(ctx, delivery.Report{Channel: "/sync", Outcome: delivery.OutcomeResolveFailed})
	c.RecordDelivery(ctx, delivery.Report{Outcome: delivery.OutcomeRejected})

	// One histogram series each for publish, wait and total, plus five outcome counters.
	assert.Equal(t, 8, testutil.CollectAndCount(c))
}

func TestCollector_RegistersCleanly(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(metrics.NewCollector()))
	require.NoError(t, reg.Register(metrics.QueueDepthGauge(func() int { return 7 })))
}

func TestQueueDepthGauge(t *testing.T) {
	depth := 3
	g := metrics.QueueDepthGauge(func() int { return depth })
	assert.Equal(t, float64(3), testutil.ToFloat64(g))

	depth = 11
	assert.Equal(t, float64(11), testutil.ToFloat64(g))
}
