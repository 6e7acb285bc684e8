// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/paper-trader/internal/circuitbreaker"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/service"
	"github.com/paper-trader/internal/types"
)

// Service interfaces for dependency injection and testing

// AccountServiceInterface defines the interface for account operations
type AccountServiceInterface interface {
	Register(ctx context.Context, input *service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, input *service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccessToken(tokenString string) (*service.Claims, error)
}

// LedgerServiceInterface defines the interface for trade and valuation operations
type LedgerServiceInterface interface {
	ExecuteBuy(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error)
	ExecuteSell(ctx context.Context, input *service.TradeInput) (*service.TradeResult, error)
	ValuePortfolio(ctx context.Context, userID string) (*service.PortfolioView, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
}

// QuoteServiceInterface defines the interface for market data operations
type QuoteServiceInterface interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]*models.DailyBar, error)
	RefreshHoldingPrices(ctx context.Context, portfolioID string, holdings []*models.Holding) int
}

// WatchlistServiceInterface defines the interface for watchlist operations
type WatchlistServiceInterface interface {
	Add(ctx context.Context, userID, symbol string) (*models.WatchlistEntry, error)
	Remove(ctx context.Context, userID, symbol string) (bool, error)
	List(ctx context.Context, userID string) ([]*service.WatchlistItem, error)
}

// RecommendationServiceInterface defines the interface for model advice operations
type RecommendationServiceInterface interface {
	GetRecommendations(ctx context.Context, userID string, profile *types.RiskProfile) (*service.RecommendationSet, error)
	BreakerState() circuitbreaker.State
}

// PortfolioReaderInterface reads raw portfolio state for price refreshes
type PortfolioReaderInterface interface {
	GetByUser(ctx context.Context, userID string) (*models.Portfolio, error)
	ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error)
}

// AuditServiceInterface runs ledger consistency audits
type AuditServiceInterface interface {
	CheckPortfolio(ctx context.Context, userID string) (*service.ConsistencyCheckResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	accounts        AccountServiceInterface
	ledger          LedgerServiceInterface
	quotes          QuoteServiceInterface
	watchlist       WatchlistServiceInterface
	recommendations RecommendationServiceInterface
	portfolios      PortfolioReaderInterface
	audit           AuditServiceInterface
	config          *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FreeTierRPS     int
	PremiumTierRPS  int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	accounts AccountServiceInterface,
	ledger LedgerServiceInterface,
	quotes QuoteServiceInterface,
	watchlist WatchlistServiceInterface,
	recommendations RecommendationServiceInterface,
	portfolios PortfolioReaderInterface,
	audit AuditServiceInterface,
) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		accounts:        accounts,
		ledger:          ledger,
		quotes:          quotes,
		watchlist:       watchlist,
		recommendations: recommendations,
		portfolios:      portfolios,
		audit:           audit,
		config:          config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.PremiumTierRPS)

	// Middleware order matters: logging first, auth before rate limiting so
	// limits key on the user rather than the connection.
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes(rateLimiter)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(rateLimiter *RateLimiter) {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	auth := s.router.PathPrefix("/auth").Subrouter()
	auth.Use(RateLimitMiddleware(rateLimiter)) // keyed by IP pre-auth
	auth.HandleFunc("/register", s.handleRegister).Methods("POST")
	auth.HandleFunc("/login", s.handleLogin).Methods("POST")
	auth.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	auth.HandleFunc("/logout", s.handleLogout).Methods("POST")

	// Authenticated endpoints
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(AuthMiddleware(s.accounts))
	api.Use(RateLimitMiddleware(rateLimiter))

	api.HandleFunc("/trades/buy", s.handleBuy).Methods("POST")
	api.HandleFunc("/trades/sell", s.handleSell).Methods("POST")

	api.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/transactions", s.handleGetTransactions).Methods("GET")
	api.HandleFunc("/portfolio/audit", s.handleAudit).Methods("GET")

	api.HandleFunc("/watchlist", s.handleGetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", s.handleAddWatchlist).Methods("POST")
	api.HandleFunc("/watchlist/{symbol}", s.handleRemoveWatchlist).Methods("DELETE")

	api.HandleFunc("/recommendations", s.handleGetRecommendations).Methods("GET")

	api.HandleFunc("/market/{symbol}/quote", s.handleGetQuote).Methods("GET")
	api.HandleFunc("/market/{symbol}/history", s.handleGetHistory).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "healthy",
		"service": "paper-trader",
	}
	if s.recommendations != nil {
		health["predictionBreaker"] = s.recommendations.BreakerState()
	}
	respondJSON(w, http.StatusOK, health)
}

// Handler exposes the configured router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
