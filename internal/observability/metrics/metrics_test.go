package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("provider", "paystack"),
		attribute.String("reference", "T123"),
		attribute.String("donor_email", "a@b.c"),
		attribute.String("outcome", "success"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("provider"))
	assert.Contains(t, keys, attribute.Key("outcome"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordReconcileOutcome(ctx, "paystack", "success")
		m.RecordGatewayCall(ctx, "paystack", "verify", "", time.Second)
		m.RecordLedgerApplied(ctx, "callback", 4000)
		m.RecordRateLimitAllowed(ctx, "initialize")
		m.RecordRateLimitDenied(ctx, "initialize", "exhausted")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "giving-tree"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordLedgerApplied(context.Background(), "replay", 100)
	})
}
