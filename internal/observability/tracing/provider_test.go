package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/payments/payment_callback"),
		attribute.String("payment.reference", "T123"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsInnermost(t *testing.T) {
	root := errors.New("persist_error")
	err := fmt.Errorf("reference T123: %w", root)
	assert.EqualError(t, SafeError(err), "persist_error")
	assert.Nil(t, SafeError(nil))
}
