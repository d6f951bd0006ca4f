package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const charityColumns = `id, name, slug, description, website, logo_url, image_url, active, created_at, updated_at`

const wishColumns = `id, charity_id, name, description, unit_price, quantity, target_amount,
	current_amount, fulfilled, created_at, updated_at`

func (r *repo) InsertCharity(ctx context.Context, db *gorm.DB, charity *domain.Charity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO charities (`+charityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charity.ID,
		charity.Name,
		charity.Slug,
		charity.Description,
		charity.Website,
		charity.LogoURL,
		charity.ImageURL,
		charity.Active,
		charity.CreatedAt,
		charity.UpdatedAt,
	).Error
}

func (r *repo) UpdateCharity(ctx context.Context, db *gorm.DB, charity *domain.Charity) error {
	return db.WithContext(ctx).Exec(
		`UPDATE charities
		 SET name = ?, slug = ?, description = ?, website = ?, logo_url = ?, image_url = ?,
		     active = ?, updated_at = ?
		 WHERE id = ?`,
		charity.Name,
		charity.Slug,
		charity.Description,
		charity.Website,
		charity.LogoURL,
		charity.ImageURL,
		charity.Active,
		charity.UpdatedAt,
		charity.ID,
	).Error
}

func (r *repo) FindCharityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Charity, error) {
	var charity domain.Charity
	err := db.WithContext(ctx).Raw(
		`SELECT `+charityColumns+` FROM charities WHERE id = ?`,
		id,
	).Scan(&charity).Error
	if err != nil {
		return nil, err
	}
	if charity.ID == 0 {
		return nil, nil
	}
	return &charity, nil
}

// FindCharityForUpdate locks the charity row for the rest of the transaction.
// Dialects without row locks ignore the clause.
func (r *repo) FindCharityForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Charity, error) {
	var charity domain.Charity
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&charity).Error
	if err != nil {
		return nil, err
	}
	if charity.ID == 0 {
		return nil, nil
	}
	return &charity, nil
}

func (r *repo) ListCharities(ctx context.Context, db *gorm.DB) ([]domain.CharitySummary, error) {
	var items []domain.CharitySummary
	err := db.WithContext(ctx).Raw(
		`SELECT c.id, c.name, c.slug, c.description, c.website, c.logo_url, c.image_url,
		        c.active, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM wishes w WHERE w.charity_id = c.id) AS wish_count
		 FROM charities c
		 ORDER BY c.created_at DESC, c.id DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetCharityActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE charities SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		now,
		id,
	).Error
}

func (r *repo) InsertWish(ctx context.Context, db *gorm.DB, wish *domain.Wish) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wishes (`+wishColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		wish.ID,
		wish.CharityID,
		wish.Name,
		wish.Description,
		wish.UnitPrice,
		wish.Quantity,
		wish.TargetAmount,
		wish.TargetAmount <= 0,
		wish.CreatedAt,
		wish.UpdatedAt,
	).Error
}

// UpdateWishDetails rewrites the descriptive fields and the target. The stored
// current_amount is left alone and fulfilled is recomputed against it.
func (r *repo) UpdateWishDetails(ctx context.Context, db *gorm.DB, wish *domain.Wish) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wishes
		 SET fulfilled = (current_amount >= ?),
		     name = ?, description = ?, unit_price = ?, quantity = ?, target_amount = ?, updated_at = ?
		 WHERE id = ? AND charity_id = ?`,
		wish.TargetAmount,
		wish.Name,
		wish.Description,
		wish.UnitPrice,
		wish.Quantity,
		wish.TargetAmount,
		wish.UpdatedAt,
		wish.ID,
		wish.CharityID,
	).Error
}

func (r *repo) DeleteWish(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM wishes WHERE id = ?`, id).Error
}

func (r *repo) FindWishByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Wish, error) {
	var wish domain.Wish
	err := db.WithContext(ctx).Raw(
		`SELECT `+wishColumns+` FROM wishes WHERE id = ?`,
		id,
	).Scan(&wish).Error
	if err != nil {
		return nil, err
	}
	if wish.ID == 0 {
		return nil, nil
	}
	return &wish, nil
}

func (r *repo) ListWishesByCharity(ctx context.Context, db *gorm.DB, charityID snowflake.ID) ([]domain.Wish, error) {
	var wishes []domain.Wish
	err := db.WithContext(ctx).Raw(
		`SELECT `+wishColumns+` FROM wishes WHERE charity_id = ? ORDER BY created_at ASC, id ASC`,
		charityID,
	).Scan(&wishes).Error
	if err != nil {
		return nil, err
	}
	return wishes, nil
}

func (r *repo) ListWishes(ctx context.Context, db *gorm.DB) ([]domain.WishView, error) {
	var wishes []domain.WishView
	err := db.WithContext(ctx).Raw(
		`SELECT w.id, w.charity_id, w.name, w.description, w.unit_price, w.quantity, w.target_amount,
		        w.current_amount, w.fulfilled, w.created_at, w.updated_at,
		        COALESCE(c.name, 'Unknown Charity') AS charity_name
		 FROM wishes w
		 LEFT JOIN charities c ON c.id = w.charity_id
		 ORDER BY w.created_at DESC, w.id DESC`,
	).Scan(&wishes).Error
	if err != nil {
		return nil, err
	}
	return wishes, nil
}

func (r *repo) CountPaymentsForWish(ctx context.Context, db *gorm.DB, wishID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM payments WHERE wish_id = ?`,
		wishID,
	).Scan(&count).Error
	return count, err
}
