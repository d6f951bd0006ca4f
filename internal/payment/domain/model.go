package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"gorm.io/datatypes"
)

// Payment is a verified donation. Metadata is the block the gateway echoed
// back, kept as received. Rows are immutable apart from AppliedAt,
// which moves once from NULL when the ledger update commits.
type Payment struct {
	ID         snowflake.ID        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Reference  string              `json:"reference" gorm:"type:varchar(100);not null;uniqueIndex"`
	Gateway    string              `json:"gateway" gorm:"type:varchar(32);not null"`
	WishID     snowflake.ID        `json:"wish_id" gorm:"not null;index"`
	Wish       *catalogdomain.Wish `json:"-" gorm:"foreignKey:WishID;constraint:OnDelete:RESTRICT"`
	Quantity   int64               `json:"quantity" gorm:"not null"`
	UnitPrice  int64               `json:"-" gorm:"not null"`
	Amount     int64               `json:"-" gorm:"not null"`
	DonorEmail string              `json:"email" gorm:"type:varchar(150);not null"`
	Metadata   datatypes.JSONMap   `json:"metadata"`
	PaidAt     time.Time           `json:"paid_at" gorm:"not null"`
	AppliedAt  *time.Time          `json:"applied_at" gorm:"index"`
	CreatedAt  time.Time           `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

func (p Payment) Applied() bool { return p.AppliedAt != nil }

// PaymentView is a payment joined with the names of the wish and charity it
// funded, for the admin listing.
type PaymentView struct {
	Payment
	WishName    string `gorm:"column:wish_name"`
	CharityName string `gorm:"column:charity_name"`
}

const (
	UnknownWishName    = "Unknown Wish"
	UnknownCharityName = "Unknown Charity"
	UnknownDonorEmail  = "unknown@example.com"
)
