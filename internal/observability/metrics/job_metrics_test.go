package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: JobReasonDeadlineExceeded},
		{name: "lock_held", err: fmt.Errorf("replay: %w", ErrLockHeld), want: JobReasonLockHeld},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: JobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: JobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: JobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newJobMetrics(registry, Config{ServiceName: "giving-tree", Environment: "test"})

	m.AddBatchProcessed("ledger_replay", "payments", 3)
	m.AddBatchProcessed("ledger_replay", "payments", 0)

	got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("ledger_replay", "payments"))
	assert.Equal(t, float64(3), got)
}

func TestIncJobErrorClassifies(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newJobMetrics(registry, Config{})

	m.IncJobError("ledger_replay", ErrLockHeld)
	m.IncJobError("ledger_replay", nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("ledger_replay", JobReasonLockHeld)))
}
