package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrWishNotFound  = errors.New("wish_not_found")
)

// Source types label what moved a wish total.
const (
	SourcePayment = "payment"
	SourceReplay  = "replay"
)

// Service is the only writer of a wish's current_amount and fulfilled flag.
// Every apply keeps fulfilled equal to current_amount >= target_amount.
type Service interface {
	ApplyPayment(ctx context.Context, wishID snowflake.ID, amount decimal.Decimal) error
	// ApplyPaymentTx runs the same update on a caller-owned transaction.
	ApplyPaymentTx(ctx context.Context, tx *gorm.DB, wishID snowflake.ID, amount decimal.Decimal, source string) error
}
