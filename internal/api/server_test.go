package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/circuitbreaker"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/service"
	"github.com/paper-trader/internal/types"
)

// Mock services for testing

type mockAccountService struct {
	registerFunc func(ctx context.Context, input *service.RegisterInput) (*service.AuthResult, error)
	loginFunc    func(ctx context.Context, input *service.LoginInput) (*service.AuthResult, error)
}

func testAuthResult() *service.AuthResult {
	return &service.AuthResult{
		User: &models.User{
			ID:    "user-123",
			Email: "trader@example.com",
			Tier:  types.TierFree,
		},
		AccessToken:  "test-token",
		RefreshToken: "refresh-abc",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
	}
}

func (m *mockAccountService) Register(ctx context.Context, input *service.RegisterInput) (*service.AuthResult, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, input)
	}
	return testAuthResult(), nil
}

func (m *mockAccountService) Login(ctx context.Context, input *service.LoginInput) (*service.AuthResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, input)
	}
	return testAuthResult(), nil
}

func (m *mockAccountService) Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error) {
	if refreshToken != "refresh-abc" {
		return nil, apperrors.NewUnauthorizedError("invalid refresh token")
	}
	return testAuthResult(), nil
}

func (m *mockAccountService) Logout(ctx context.Context, refreshToken string) error {
	return nil
}

func (m *mockAccountService) VerifyAccessToken(tokenString string) (*service.Claims, error) {
	if tokenString != "test-token" {
		return nil, apperrors.NewUnauthorizedError("invalid access token")
	}
	return &service.Claims{UserID: "user-123", Tier: types.TierFree}, nil
}

type mockLedgerService struct {
	buyFunc  func(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error)
	sellFunc func(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error)
}

func testTradeResult(input *service.TradeInput, side types.TradeSide) *service.TradeResult {
	quantity := input.Quantity
	return &service.TradeResult{
		Success: true,
		Transaction: &models.Transaction{
			ID:            "txn-123",
			PortfolioID:   "portfolio-123",
			Symbol:        input.Symbol,
			Side:          side,
			Quantity:      quantity,
			PricePerShare: input.Price,
			TotalAmount:   quantity.Mul(input.Price),
			ExecutedAt:    time.Now(),
		},
		CashBalance: "89235",
		Holding: &models.Holding{
			PortfolioID: "portfolio-123",
			Symbol:      input.Symbol,
			Quantity:    quantity,
			AvgBuyPrice: input.Price,
		},
	}
}

func (m *mockLedgerService) ExecuteBuy(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error) {
	if m.buyFunc != nil {
		return m.buyFunc(ctx, input)
	}
	return testTradeResult(input, types.SideBuy), nil
}

func (m *mockLedgerService) ExecuteSell(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error) {
	if m.sellFunc != nil {
		return m.sellFunc(ctx, input)
	}
	return testTradeResult(input, types.SideSell), nil
}

func (m *mockLedgerService) ValuePortfolio(ctx context.Context, userID string) (*service.PortfolioView, error) {
	return &service.PortfolioView{
		PortfolioID: "portfolio-123",
		CashBalance: "89235",
		Holdings: []service.HoldingView{
			{
				Symbol:      "AAPL",
				Quantity:    "50",
				AvgBuyPrice: "215.3",
				MarketValue: "10765",
			},
		},
		MarketValue: "10765",
		TotalValue:  "100000",
		AsOf:        time.Now(),
	}, nil
}

func (m *mockLedgerService) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	return []*models.Transaction{
		{
			ID:            "txn-123",
			PortfolioID:   "portfolio-123",
			Symbol:        "AAPL",
			Side:          types.SideBuy,
			Quantity:      decimal.NewFromInt(50),
			PricePerShare: decimal.RequireFromString("215.30"),
			TotalAmount:   decimal.RequireFromString("10765.00"),
			ExecutedAt:    time.Now(),
		},
	}, nil
}

type mockQuoteService struct {
	getQuoteFunc func(ctx context.Context, symbol string) (*models.Quote, error)
}

func (m *mockQuoteService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.getQuoteFunc != nil {
		return m.getQuoteFunc(ctx, symbol)
	}
	return &models.Quote{Symbol: symbol, Price: 215.30, FetchedAt: time.Now()}, nil
}

func (m *mockQuoteService) GetHistory(ctx context.Context, symbol string, days int) ([]*models.DailyBar, error) {
	return []*models.DailyBar{
		{Symbol: symbol, Date: time.Now().AddDate(0, 0, -1), Open: 210, High: 218, Low: 209, Close: 215.30, Volume: 1000000},
	}, nil
}

func (m *mockQuoteService) RefreshHoldingPrices(ctx context.Context, portfolioID string, holdings []*models.Holding) int {
	return len(holdings)
}

type mockWatchlistService struct {
	addFunc    func(ctx context.Context, userID, symbol string) (*models.WatchlistEntry, error)
	removeFunc func(ctx context.Context, userID, symbol string) (bool, error)
}

func (m *mockWatchlistService) Add(ctx context.Context, userID, symbol string) (*models.WatchlistEntry, error) {
	if m.addFunc != nil {
		return m.addFunc(ctx, userID, symbol)
	}
	return &models.WatchlistEntry{UserID: userID, Symbol: symbol, AddedAt: time.Now()}, nil
}

func (m *mockWatchlistService) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, userID, symbol)
	}
	return true, nil
}

func (m *mockWatchlistService) List(ctx context.Context, userID string) ([]*service.WatchlistItem, error) {
	return []*service.WatchlistItem{
		{Symbol: "AAPL", Quote: &models.Quote{Symbol: "AAPL", Price: 215.30}},
		{Symbol: "TSLA"},
	}, nil
}

type mockRecommendationService struct {
	getFunc func(ctx context.Context, userID string, profile *types.RiskProfile) (*service.RecommendationSet, error)
}

func (m *mockRecommendationService) GetRecommendations(ctx context.Context, userID string, profile *types.RiskProfile) (*service.RecommendationSet, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, profile)
	}
	return &service.RecommendationSet{
		Recommendations: []*models.Recommendation{
			{
				ID:              "rec-123",
				UserID:          userID,
				Symbol:          "AAPL",
				Label:           types.LabelBuy,
				ConfidenceScore: 0.82,
				CreatedAt:       time.Now(),
			},
		},
		GeneratedAt: time.Now(),
	}, nil
}

func (m *mockRecommendationService) BreakerState() circuitbreaker.State {
	return circuitbreaker.StateClosed
}

type mockPortfolioReader struct{}

func (m *mockPortfolioReader) GetByUser(ctx context.Context, userID string) (*models.Portfolio, error) {
	return &models.Portfolio{ID: "portfolio-123", UserID: userID, CashBalance: decimal.RequireFromString("89235.00")}, nil
}

func (m *mockPortfolioReader) ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error) {
	return []*models.Holding{
		{PortfolioID: portfolioID, Symbol: "AAPL", Quantity: decimal.NewFromInt(50), AvgBuyPrice: decimal.RequireFromString("215.30")},
	}, nil
}

type mockAuditService struct{}

func (m *mockAuditService) CheckPortfolio(ctx context.Context, userID string) (*service.ConsistencyCheckResult, error) {
	return &service.ConsistencyCheckResult{
		PortfolioID:  "portfolio-123",
		Consistent:   true,
		CashBalance:  "89235",
		ExpectedCash: "89235",
		CheckedAt:    time.Now(),
	}, nil
}

// Helper function to create a test server backed by mock services.
func createTestServer() *Server {
	config := &ServerConfig{
		Host:           "localhost",
		Port:           "8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		FreeTierRPS:    100,
		PremiumTierRPS: 1000,
	}

	return NewServer(
		config,
		&mockAccountService{},
		&mockLedgerService{},
		&mockQuoteService{},
		&mockWatchlistService{},
		&mockRecommendationService{},
		&mockPortfolioReader{},
		&mockAuditService{},
	)
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

// TestHealthEndpoint tests the health check endpoint
func TestHealthEndpoint(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", response["status"])
	}
	if response["predictionBreaker"] != "closed" {
		t.Errorf("Expected closed prediction breaker, got '%v'", response["predictionBreaker"])
	}
}

// TestRegister_Success tests successful registration
func TestRegister_Success(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{
		"email":       "trader@example.com",
		"password":    "correct horse battery",
		"displayName": "Trader",
	})

	req := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response authResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.AccessToken == "" || response.RefreshToken == "" {
		t.Error("Expected issued tokens in the response")
	}
	if response.UserID != "user-123" {
		t.Errorf("Expected user ID 'user-123', got '%s'", response.UserID)
	}
}

// TestLogin_InvalidCredentials tests the error mapping for a rejected login
func TestLogin_InvalidCredentials(t *testing.T) {
	server := createTestServer()
	server.accounts = &mockAccountService{
		loginFunc: func(ctx context.Context, input *service.LoginInput) (*service.AuthResult, error) {
			return nil, apperrors.NewUnauthorizedError("invalid credentials")
		},
	}

	body, _ := json.Marshal(map[string]string{
		"email":    "trader@example.com",
		"password": "wrong",
	})

	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

// TestRefresh_UnknownToken tests refresh with a revoked token
func TestRefresh_UnknownToken(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{"refreshToken": "revoked"})
	req := httptest.NewRequest("POST", "/auth/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

// TestBuy_Success tests a successful buy through the full middleware chain
func TestBuy_Success(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{
		"symbol":   "AAPL",
		"quantity": "50",
		"price":    "215.30",
	})

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("POST", "/api/trades/buy", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response service.TradeResult
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Transaction == nil || response.Transaction.Symbol != "AAPL" {
		t.Errorf("Expected AAPL fill, got %+v", response.Transaction)
	}
	if response.CashBalance != "89235" {
		t.Errorf("Expected cash balance 89235, got %s", response.CashBalance)
	}
}

// TestBuy_InsufficientFunds tests that business failures map to 422
func TestBuy_InsufficientFunds(t *testing.T) {
	server := createTestServer()
	server.ledger = &mockLedgerService{
		buyFunc: func(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error) {
			return nil, apperrors.NewInsufficientFundsError("10765.00", "500.00")
		},
	}

	body, _ := json.Marshal(map[string]string{
		"symbol":   "AAPL",
		"quantity": "50",
		"price":    "215.30",
	})

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("POST", "/api/trades/buy", body))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d: %s", w.Code, w.Body.String())
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Error.Code != "INSUFFICIENT_FUNDS" {
		t.Errorf("Expected code INSUFFICIENT_FUNDS, got %s", response.Error.Code)
	}
}

// TestSell_MissingToken tests that trades require authentication
func TestSell_MissingToken(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{
		"symbol":   "AAPL",
		"quantity": "50",
		"price":    "215.30",
	})

	req := httptest.NewRequest("POST", "/api/trades/sell", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

// TestGetPortfolio_Success tests valuation retrieval
func TestGetPortfolio_Success(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/portfolio", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response service.PortfolioView
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.PortfolioID != "portfolio-123" {
		t.Errorf("Expected portfolio ID 'portfolio-123', got '%s'", response.PortfolioID)
	}
	if len(response.Holdings) != 1 {
		t.Errorf("Expected one holding, got %d", len(response.Holdings))
	}
}

// TestGetTransactions_Success tests history retrieval
func TestGetTransactions_Success(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/portfolio/transactions?limit=10", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Transactions []*models.Transaction `json:"transactions"`
		Count        int                   `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Count != 1 || len(response.Transactions) != 1 {
		t.Errorf("Expected one transaction, got %d", response.Count)
	}
}

// TestAudit_Success tests the consistency audit endpoint
func TestAudit_Success(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/portfolio/audit", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response service.ConsistencyCheckResult
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !response.Consistent {
		t.Error("Expected a consistent audit result")
	}
}

// TestWatchlist_AddAndList tests watchlist mutation and retrieval
func TestWatchlist_AddAndList(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{"symbol": "TSLA"})
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("POST", "/api/watchlist", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/watchlist", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Watchlist []*service.WatchlistItem `json:"watchlist"`
		Count     int                      `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Count != 2 {
		t.Errorf("Expected two watchlist items, got %d", response.Count)
	}
}

// TestWatchlist_RemoveMissing tests deleting a symbol that is not watched
func TestWatchlist_RemoveMissing(t *testing.T) {
	server := createTestServer()
	server.watchlist = &mockWatchlistService{
		removeFunc: func(ctx context.Context, userID, symbol string) (bool, error) {
			return false, nil
		},
	}

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("DELETE", "/api/watchlist/TSLA", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

// TestGetRecommendations_Success tests advice retrieval with profile params
func TestGetRecommendations_Success(t *testing.T) {
	server := createTestServer()

	var captured *types.RiskProfile
	server.recommendations = &mockRecommendationService{
		getFunc: func(ctx context.Context, userID string, profile *types.RiskProfile) (*service.RecommendationSet, error) {
			captured = profile
			return (&mockRecommendationService{}).GetRecommendations(ctx, userID, nil)
		},
	}

	target := "/api/recommendations?riskTolerance=aggressive&investmentHorizon=short&maxLossTolerance=0.3&preferredSectors=tech,energy"
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", target, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if captured == nil {
		t.Fatal("Expected a risk profile to be passed through")
	}
	if captured.RiskTolerance != types.RiskAggressive {
		t.Errorf("Expected aggressive tolerance, got %s", captured.RiskTolerance)
	}
	if captured.InvestmentHorizon != types.HorizonShort {
		t.Errorf("Expected short horizon, got %s", captured.InvestmentHorizon)
	}
	if len(captured.PreferredSectors) != 2 {
		t.Errorf("Expected two sectors, got %v", captured.PreferredSectors)
	}

	var response service.RecommendationSet
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Recommendations) != 1 {
		t.Errorf("Expected one recommendation, got %d", len(response.Recommendations))
	}
}

// TestGetQuote_Success tests quote retrieval
func TestGetQuote_Success(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/market/AAPL/quote", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response models.Quote
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Symbol != "AAPL" || response.Price != 215.30 {
		t.Errorf("Unexpected quote: %+v", response)
	}
}

// TestGetQuote_Degraded tests that a stale fallback quote is surfaced as such
func TestGetQuote_Degraded(t *testing.T) {
	server := createTestServer()
	server.quotes = &mockQuoteService{
		getQuoteFunc: func(ctx context.Context, symbol string) (*models.Quote, error) {
			return &models.Quote{Symbol: symbol, Price: 214.10, Stale: true}, nil
		},
	}

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/market/AAPL/quote", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response models.Quote
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !response.Stale {
		t.Error("Expected the quote to be marked stale")
	}
}

// TestGetHistory_Success tests historical bar retrieval
func TestGetHistory_Success(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, authedRequest("GET", "/api/market/AAPL/history?days=7", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Symbol string             `json:"symbol"`
		Days   int                `json:"days"`
		Bars   []*models.DailyBar `json:"bars"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Days != 7 || len(response.Bars) != 1 {
		t.Errorf("Unexpected history response: %+v", response)
	}
}

// TestCORSHeaders tests that CORS headers are set on all responses
func TestCORSHeaders(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers to be set")
	}
}
