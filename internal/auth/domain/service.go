package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Principal, error)
}

type CreateUserRequest struct {
	Username string
	Email    string
	Password string
}

// LoginRequest accepts either the username or the email in Username.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    snowflake.ID
}

// Principal is the authenticated admin behind a bearer token.
type Principal struct {
	UserID    snowflake.ID
	Username  string
	ExpiresAt time.Time
}
