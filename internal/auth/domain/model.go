// Package domain contains core types for admin authentication.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an admin account. Donors never log in.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Username     string       `gorm:"type:varchar(80);not null;uniqueIndex"`
	Email        string       `gorm:"type:varchar(150);not null;uniqueIndex"`
	PasswordHash string       `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
