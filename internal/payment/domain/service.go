package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

// ReconcileOutcome describes a successful callback. Duplicate means the
// reference was already applied by an earlier callback. PartialFailure
// means the payment was stored but the wish total was not updated yet; the
// replay job finishes it.
type ReconcileOutcome struct {
	PaymentID      snowflake.ID
	WishID         snowflake.ID
	Reference      string
	Amount         decimal.Decimal
	Duplicate      bool
	PartialFailure bool
}

type InitializePaymentRequest struct {
	Email     string              `json:"email" binding:"required,email"`
	Quantity  int64               `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Amount    decimal.Decimal     `json:"amount"`
	ID        json.Number         `json:"id" binding:"required"`
}

type InitializePaymentResponse struct {
	AuthURL   string `json:"auth_url"`
	Reference string `json:"reference"`
}

type ListPaymentsRequest struct {
	pagination.Pagination
}

type ListPaymentsResponse struct {
	Payments []PaymentView
	PageInfo pagination.PageInfo
}

// DonationEvent is published to the live feed after a payment is applied.
type DonationEvent struct {
	PaymentID  snowflake.ID `json:"payment_id"`
	WishID     snowflake.ID `json:"wish_id"`
	WishName   string       `json:"wish_name"`
	Amount     string       `json:"amount"`
	Raised     string       `json:"raised"`
	Target     string       `json:"target"`
	Fulfilled  bool         `json:"fulfilled"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type Service interface {
	Reconcile(ctx context.Context, reference string) (ReconcileOutcome, error)
	Initialize(ctx context.Context, req InitializePaymentRequest) (InitializePaymentResponse, error)
	ReplayUnapplied(ctx context.Context, limit int) (int, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) (ListPaymentsResponse, error)
}
