package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const paymentColumns = `id, reference, gateway, wish_id, quantity, unit_price, amount, donor_email,
	metadata, paid_at, applied_at, created_at`

// InsertIfAbsent relies on the unique reference index. The conflict clause
// renders per dialect (ON CONFLICT DO NOTHING, or a no-op ON DUPLICATE KEY
// UPDATE on mysql), so a lost race reports zero rows instead of an error.
func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoNothing: true,
		}).
		Create(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkApplied(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments SET applied_at = ? WHERE id = ? AND applied_at IS NULL`,
		at,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListUnapplied(ctx context.Context, db *gorm.DB, limit int) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE applied_at IS NULL
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// List pages newest first. Fetch limit+1 rows to learn whether another page
// exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, cursor *pagination.Cursor, limit int) ([]domain.PaymentView, error) {
	query := `SELECT p.id, p.reference, p.gateway, p.wish_id, p.quantity, p.unit_price, p.amount,
	        p.donor_email, p.metadata, p.paid_at, p.applied_at, p.created_at,
	        COALESCE(w.name, ?) AS wish_name,
	        COALESCE(c.name, ?) AS charity_name
	 FROM payments p
	 LEFT JOIN wishes w ON w.id = p.wish_id
	 LEFT JOIN charities c ON c.id = w.charity_id`
	args := []any{domain.UnknownWishName, domain.UnknownCharityName}

	if cursor != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		query += ` WHERE (p.created_at < ? OR (p.created_at = ? AND p.id < ?))`
		args = append(args, createdAt.UTC(), createdAt.UTC(), id)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ?`
	args = append(args, limit)

	var items []domain.PaymentView
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
