package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	ledgerdomain "github.com/lgndcraft2/giving-tree/internal/ledger/domain"
	obsmetrics "github.com/lgndcraft2/giving-tree/internal/observability/metrics"
	"github.com/lgndcraft2/giving-tree/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ApplyPayment(ctx context.Context, wishID snowflake.ID, amount decimal.Decimal) error {
	return s.ApplyPaymentTx(ctx, s.db, wishID, amount, ledgerdomain.SourcePayment)
}

// ApplyPaymentTx adds amount to the wish and recomputes fulfilled in one
// statement, so concurrent applies never lose an update. fulfilled is
// assigned first because MySQL evaluates SET clauses left to right.
func (s *Service) ApplyPaymentTx(ctx context.Context, tx *gorm.DB, wishID snowflake.ID, amount decimal.Decimal, source string) error {
	if amount.IsNegative() {
		return ledgerdomain.ErrInvalidAmount
	}
	minor, err := money.ToMinor(amount)
	if err != nil {
		return errors.Join(ledgerdomain.ErrInvalidAmount, err)
	}
	if wishID == 0 {
		return ledgerdomain.ErrWishNotFound
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE wishes
		 SET fulfilled = (current_amount + ? >= target_amount),
		     current_amount = current_amount + ?,
		     updated_at = ?
		 WHERE id = ?`,
		minor,
		minor,
		s.clock.Now(),
		wishID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledgerdomain.ErrWishNotFound
	}

	s.obsMetrics.RecordLedgerApplied(ctx, source, minor)
	s.log.Debug("wish total updated",
		zap.String("wish_id", wishID.String()),
		zap.Int64("amount_minor", minor),
		zap.String("source", source),
	)
	return nil
}
