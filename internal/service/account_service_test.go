package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paper-trader/internal/config"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx for the handful of methods signup uses.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeUserStore struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
	lastTx  *fakeTx
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]*models.User),
		byID:    make(map[string]*models.User),
	}
}

func (s *fakeUserStore) CreateWithTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id)
	}
	return u, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", email)
	}
	return u, nil
}

func (s *fakeUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *fakeUserStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	s.lastTx = &fakeTx{}
	return s.lastTx, nil
}

type fakePortfolioCreator struct {
	created []*models.Portfolio
}

func (c *fakePortfolioCreator) CreateWithTx(ctx context.Context, tx pgx.Tx, portfolio *models.Portfolio) error {
	c.created = append(c.created, portfolio)
	return nil
}

type fakeTokenStore struct {
	tokens map[string]string
}

func (s *fakeTokenStore) StoreRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	s.tokens[token] = userID
	return nil
}

func (s *fakeTokenStore) LookupRefreshToken(ctx context.Context, token string) (string, error) {
	return s.tokens[token], nil
}

func (s *fakeTokenStore) RevokeRefreshToken(ctx context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

func newTestAccountService(t *testing.T) (*AccountService, *fakeUserStore, *fakePortfolioCreator, *fakeTokenStore) {
	t.Helper()

	users := newFakeUserStore()
	portfolios := &fakePortfolioCreator{}
	tokens := &fakeTokenStore{}

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Auth.RefreshTokenTTL = 24 * time.Hour
	cfg.Trading.StartingCash = "100000.00"

	svc, err := NewAccountService(users, portfolios, tokens, cfg)
	require.NoError(t, err)

	return svc, users, portfolios, tokens
}

func TestRegisterCreatesFundedPortfolio(t *testing.T) {
	ctx := context.Background()
	svc, users, portfolios, _ := newTestAccountService(t)

	result, err := svc.Register(ctx, &RegisterInput{
		Email:       "Trader@Example.com",
		Password:    "hunter2hunter2",
		DisplayName: "Trader",
	})
	require.NoError(t, err)

	assert.Equal(t, "trader@example.com", result.User.Email)
	assert.Equal(t, types.TierFree, result.User.Tier)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	require.Len(t, portfolios.created, 1)
	assert.Equal(t, result.User.ID, portfolios.created[0].UserID)
	assert.True(t, portfolios.created[0].CashBalance.Equal(decimal.RequireFromString("100000.00")))

	require.NotNil(t, users.lastTx)
	assert.True(t, users.lastTx.committed)

	claims, err := svc.VerifyAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, types.TierFree, claims.Tier)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestAccountService(t)

	_, err := svc.Register(ctx, &RegisterInput{Email: "not-an-email", Password: "hunter2hunter2"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUserError(err))

	_, err = svc.Register(ctx, &RegisterInput{Email: "a@b.com", Password: "short"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUserError(err))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestAccountService(t)

	_, err := svc.Register(ctx, &RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterInput{Email: "A@B.com", Password: "hunter2hunter2"})
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "CONFLICT", catErr.Code)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestAccountService(t)

	_, err := svc.Register(ctx, &RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, &LoginInput{Email: "a@b.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)

	// Wrong password and unknown email give the same answer.
	_, err = svc.Login(ctx, &LoginInput{Email: "a@b.com", Password: "wrong-password"})
	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "UNAUTHORIZED", catErr.Code)

	_, err = svc.Login(ctx, &LoginInput{Email: "nobody@b.com", Password: "hunter2hunter2"})
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "UNAUTHORIZED", catErr.Code)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, _, _, tokens := newTestAccountService(t)

	registered, err := svc.Register(ctx, &RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, registered.RefreshToken)
	require.Error(t, err)

	// Only the newest token remains tracked.
	assert.Len(t, tokens.tokens, 1)
}

func TestVerifyAccessTokenRejectsTampering(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestAccountService(t)

	result, err := svc.Register(ctx, &RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(result.AccessToken + "x")
	require.Error(t, err)

	_, err = svc.VerifyAccessToken("not-a-jwt")
	require.Error(t, err)
}
