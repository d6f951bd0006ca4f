package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/pkg/money"
)

type Charity struct {
	ID          snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string       `gorm:"type:varchar(150);not null;uniqueIndex" json:"name"`
	Slug        string       `gorm:"type:varchar(160);not null;uniqueIndex" json:"slug"`
	Description string       `gorm:"type:text" json:"description"`
	Website     string       `gorm:"type:varchar(200)" json:"website"`
	LogoURL     string       `gorm:"type:varchar(300)" json:"logo_url"`
	ImageURL    string       `gorm:"type:varchar(300)" json:"image_url"`
	Active      bool         `gorm:"not null;default:false" json:"active"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Charity) TableName() string { return "charities" }

// Wish amounts are minor units. CurrentAmount and Fulfilled belong to the
// ledger; catalog writes never set them.
type Wish struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CharityID     snowflake.ID `gorm:"not null;index" json:"charity_id"`
	Charity       *Charity     `gorm:"foreignKey:CharityID;constraint:OnDelete:RESTRICT" json:"-"`
	Name          string       `gorm:"type:varchar(150);not null" json:"name"`
	Description   string       `gorm:"type:text" json:"description"`
	UnitPrice     int64        `gorm:"not null" json:"-"`
	Quantity      int64        `gorm:"not null" json:"quantity"`
	TargetAmount  int64        `gorm:"not null" json:"-"`
	CurrentAmount int64        `gorm:"not null;default:0" json:"-"`
	Fulfilled     bool         `gorm:"not null;default:false" json:"fulfilled"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Wish) TableName() string { return "wishes" }

// Remaining is what is still needed to fund the wish, never negative.
func (w Wish) Remaining() int64 {
	if w.CurrentAmount >= w.TargetAmount {
		return 0
	}
	return w.TargetAmount - w.CurrentAmount
}

// CharitySummary is a charity with the number of wishes it owns.
type CharitySummary struct {
	Charity
	WishCount int64 `gorm:"column:wish_count"`
}

// WishView is a wish joined with its charity name.
type WishView struct {
	Wish
	CharityName string `gorm:"column:charity_name"`
}

// ListedTotal is unit price × quantity, which the listing reports as the
// wish total regardless of an explicitly supplied target.
func (w WishView) ListedTotal() string {
	total, err := money.Multiply(w.UnitPrice, w.Quantity)
	if err != nil {
		return money.Format(w.TargetAmount)
	}
	return money.Format(total)
}
