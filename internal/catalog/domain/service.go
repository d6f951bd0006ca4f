package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// WishInput is one wish in a create or edit request. ID is empty for new
// wishes; it accepts both JSON strings and numbers.
type WishInput struct {
	ID          json.Number         `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Quantity    int64               `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	TotalPrice  decimal.NullDecimal `json:"total_price"`
}

type CharityInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Website     string      `json:"website"`
	LogoURL     string      `json:"logo_url"`
	ImageURL    string      `json:"image_url"`
	Active      bool        `json:"active"`
	Wishes      []WishInput `json:"wishes"`
}

type CreateCharityRequest struct {
	CharityInput
}

type UpdateCharityRequest struct {
	ID json.Number `json:"id"`
	CharityInput
}

type CharityWithWishes struct {
	Charity Charity
	Wishes  []Wish
}

type Service interface {
	CreateCharity(ctx context.Context, req CreateCharityRequest) (CharityWithWishes, error)
	UpdateCharity(ctx context.Context, req UpdateCharityRequest) (CharityWithWishes, error)
	ToggleCharityStatus(ctx context.Context, id snowflake.ID) (Charity, error)
	GetCharity(ctx context.Context, id snowflake.ID) (CharityWithWishes, error)
	ListCharities(ctx context.Context) ([]CharitySummary, error)
	ListWishes(ctx context.Context) ([]WishView, error)
	FindWishByID(ctx context.Context, id snowflake.ID) (Wish, error)
}

var (
	ErrCharityNotFound  = errors.New("charity_not_found")
	ErrWishNotFound     = errors.New("wish_not_found")
	ErrInvalidID        = errors.New("invalid_id")
	ErrDuplicateCharity = errors.New("duplicate_charity")
	ErrWishHasPayments  = errors.New("wish_has_payments")
	ErrWishNotOwned     = errors.New("wish_not_owned_by_charity")
)
