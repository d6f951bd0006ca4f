package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lgndcraft2/giving-tree/internal/auth/domain"
	"github.com/lgndcraft2/giving-tree/internal/auth/password"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTokenTTL = 12 * time.Hour

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	GenID  *snowflake.Node
	Config config.Config
	Clock  clock.Clock `optional:"true"`
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func New(p Params) domain.Service {
	ttl := p.Config.JWTTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:    p.Log.Named("auth.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		secret: []byte(p.Config.JWTSecret),
		ttl:    ttl,
		clock:  clk,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email, err := normalizeEmail(req.Email)
	if username == "" || err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(req.Password) < password.MinLength {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           s.genID.Generate(),
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	login := strings.TrimSpace(req.Username)
	if login == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, login)
	if errors.Is(err, domain.ErrUserNotFound) && strings.Contains(login, "@") {
		user, err = s.repo.FindByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		s.log.Info("login rejected", zap.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{Token: token, ExpiresAt: expiresAt, UserID: user.ID}, nil
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s *Service) issue(user *domain.User) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, domain.ErrSigningKeyMissing
	}
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" || len(s.secret) == 0 {
		return nil, domain.ErrInvalidToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(rawToken, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(c.Subject)
	if err != nil || userID <= 0 {
		return nil, domain.ErrInvalidToken
	}
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	return &domain.Principal{
		UserID:    userID,
		Username:  c.Username,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

func normalizeEmail(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", domain.ErrInvalidCredentials
	}
	return value, nil
}
