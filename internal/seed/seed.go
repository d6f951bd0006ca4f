package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lgndcraft2/giving-tree/internal/auth/domain"
	"github.com/lgndcraft2/giving-tree/internal/auth/password"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"gorm.io/gorm"
)

// EnsureAdmin creates the configured admin account on first start. It is a
// no-op when no admin username is configured or the user already exists.
func EnsureAdmin(db *gorm.DB, admin config.AdminConfig) (bool, error) {
	if db == nil {
		return false, errors.New("seed database handle is required")
	}
	username := strings.TrimSpace(admin.Username)
	if username == "" {
		return false, nil
	}
	if len(admin.Password) < password.MinLength {
		return false, errors.New("seed admin password is too short")
	}
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		email = username + "@localhost"
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return false, err
	}

	created := false
	ctx := context.Background()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&authdomain.User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hashed, err := password.Hash(admin.Password)
		if err != nil {
			return err
		}
		user := authdomain.User{
			ID:           node.Generate(),
			Username:     username,
			Email:        email,
			PasswordHash: hashed,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
