package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent reports false when a payment with the same reference
	// already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	// MarkApplied reports false when the payment was already applied.
	MarkApplied(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ListUnapplied(ctx context.Context, db *gorm.DB, limit int) ([]Payment, error)
	List(ctx context.Context, db *gorm.DB, cursor *pagination.Cursor, limit int) ([]PaymentView, error)
}
