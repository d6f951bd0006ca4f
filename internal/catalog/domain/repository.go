package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCharity(ctx context.Context, db *gorm.DB, charity *Charity) error
	UpdateCharity(ctx context.Context, db *gorm.DB, charity *Charity) error
	FindCharityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Charity, error)
	FindCharityForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Charity, error)
	ListCharities(ctx context.Context, db *gorm.DB) ([]CharitySummary, error)
	SetCharityActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error

	InsertWish(ctx context.Context, db *gorm.DB, wish *Wish) error
	UpdateWishDetails(ctx context.Context, db *gorm.DB, wish *Wish) error
	DeleteWish(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindWishByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Wish, error)
	ListWishesByCharity(ctx context.Context, db *gorm.DB, charityID snowflake.ID) ([]Wish, error)
	ListWishes(ctx context.Context, db *gorm.DB) ([]WishView, error)
	CountPaymentsForWish(ctx context.Context, db *gorm.DB, wishID snowflake.ID) (int64, error)
}
