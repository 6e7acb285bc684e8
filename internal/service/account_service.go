package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paper-trader/internal/config"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists user accounts
type UserStore interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// PortfolioCreator creates the funded portfolio that accompanies a new user
type PortfolioCreator interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, portfolio *models.Portfolio) error
}

// TokenStore tracks issued refresh tokens
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error
	LookupRefreshToken(ctx context.Context, token string) (string, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// AccountService handles signup, login, and token lifecycle. Signup creates
// the user and their starting portfolio in one database transaction; a user
// without a portfolio must not exist.
type AccountService struct {
	users        UserStore
	portfolios   PortfolioCreator
	tokens       TokenStore
	jwtSecret    []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	startingCash decimal.Decimal
}

// NewAccountService creates a new account service
func NewAccountService(users UserStore, portfolios PortfolioCreator, tokens TokenStore, cfg *config.Config) (*AccountService, error) {
	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		return nil, apperrors.NewInternalError("invalid starting cash configuration", err)
	}

	return &AccountService{
		users:        users,
		portfolios:   portfolios,
		tokens:       tokens,
		jwtSecret:    []byte(cfg.Auth.JWTSecret),
		accessTTL:    cfg.Auth.AccessTokenTTL,
		refreshTTL:   cfg.Auth.RefreshTokenTTL,
		startingCash: startingCash,
	}, nil
}

// Input types

// RegisterInput represents a signup request
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginInput represents a login request
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Output types

// AuthResult carries issued tokens and the authenticated user
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// Claims are the JWT claims carried by access tokens
type Claims struct {
	UserID string         `json:"userId"`
	Tier   types.UserTier `json:"tier"`
	jwt.RegisteredClaims
}

// Register creates a user and their funded portfolio atomically.
func (s *AccountService) Register(ctx context.Context, input *RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("email", "must be a valid email address")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password", "must be at least 8 characters")
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflictError("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Tier:         types.TierFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin signup", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.users.CreateWithTx(ctx, tx, user); err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		CashBalance: s.startingCash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.portfolios.CreateWithTx(ctx, tx, portfolio); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewDatabaseError("commit signup", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId":      user.ID,
		"portfolioId": portfolio.ID,
	}).Info("User registered")

	return s.issueTokens(ctx, user)
}

// Login verifies credentials and issues a token pair.
func (s *AccountService) Login(ctx context.Context, input *LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Categorize(err).Category == apperrors.CategoryNotFound {
			// Same answer for unknown email and wrong password.
			return nil, apperrors.NewUnauthorizedError("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid credentials")
	}

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// refresh token is revoked; each token works once.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.tokens.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes a refresh token.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// VerifyAccessToken parses and validates an access token, returning its
// claims.
func (s *AccountService) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.NewUnauthorizedError("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid access token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid access token")
	}

	return claims, nil
}

func (s *AccountService) issueTokens(ctx context.Context, user *models.User) (*AuthResult, error) {
	expiresAt := time.Now().Add(s.accessTTL)

	claims := &Claims{
		UserID: user.ID,
		Tier:   user.Tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign access token", err)
	}

	refreshToken := uuid.New().String()
	if err := s.tokens.StoreRefreshToken(ctx, refreshToken, user.ID, s.refreshTTL); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
