package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/middleware/ratelimit"
	"retromoney/internal/middleware/security"
	"retromoney/internal/middleware/trace"
	"retromoney/internal/services"
)

type ExpenseAPI interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, month core.Month) ([]core.Expense, error)
}

type BudgetAPI interface {
	GetAllocations(ctx context.Context, month core.Month) (core.BudgetReport, error)
	GetSalary(ctx context.Context) (decimal.Decimal, error)
	ChangeSalary(ctx context.Context, salary decimal.Decimal) error
	Redistribute(ctx context.Context, changes []core.WeightChange, month core.Month) (core.BudgetReport, error)
	CheckExpense(ctx context.Context, e core.Expense) (core.BudgetCheck, error)
}

type AccountAPI interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (core.Account, error)
	Resync(ctx context.Context) (int, error)
	Quote(ctx context.Context, fromID, toID int64, gross decimal.Decimal) (core.TransferQuote, error)
	RecordTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error)
	DeleteTransfer(ctx context.Context, id int64) error
	ListTransfers(ctx context.Context) ([]core.Transfer, error)
}

type InvestmentAPI interface {
	Create(ctx context.Context, inv core.Investment) (core.Investment, error)
	Update(ctx context.Context, id int64, inv core.Investment) (core.Investment, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (services.InvestmentView, error)
	List(ctx context.Context) ([]services.InvestmentView, error)
}

// RateSource takes a rate snapshot for display.
type RateSource interface {
	Snapshot(ctx context.Context) currency.Rates
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the backends the API is served from.
type Services struct {
	Expenses    ExpenseAPI
	Budget      BudgetAPI
	Accounts    AccountAPI
	Investments InvestmentAPI
	Rates       RateSource
	Store       Pinger
}

type Options struct {
	RequestsPerMinute int
	TrustedProxies    []string
}

type Server struct {
	http.Server

	svc      Services
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/salary", s.handleGetSalary)
	mux.HandleFunc("POST /api/salary", s.handleChangeSalary)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/budget-allocations", s.handleAllocations)
	mux.HandleFunc("POST /api/budget-allocations/redistribute", s.handleRedistribute)
	mux.HandleFunc("POST /api/budget-allocations/check", s.handleCheckExpense)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("PUT /api/accounts/{id}", s.handleSetBalance)
	mux.HandleFunc("POST /api/accounts/resync", s.handleResync)

	mux.HandleFunc("GET /api/transfers", s.handleListTransfers)
	mux.HandleFunc("POST /api/transfers", s.handleRecordTransfer)
	mux.HandleFunc("GET /api/transfers/quote", s.handleQuoteTransfer)
	mux.HandleFunc("DELETE /api/transfers/{id}", s.handleDeleteTransfer)

	mux.HandleFunc("GET /api/investments", s.handleListInvestments)
	mux.HandleFunc("POST /api/investments", s.handleCreateInvestment)
	mux.HandleFunc("GET /api/investments/{id}", s.handleGetInvestment)
	mux.HandleFunc("PUT /api/investments/{id}", s.handleUpdateInvestment)
	mux.HandleFunc("DELETE /api/investments/{id}", s.handleDeleteInvestment)

	mux.HandleFunc("GET /api/exchange-rate", s.handleExchangeRate)
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		s.logger.Info("HTTP server stopped",
			"requests", s.tracer.Requests(),
			"rate_limited", s.limiter.Hits(),
			"suspicious", s.detector.SuspiciousCount())
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(map[string]string{"health": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.svc.Store != nil {
		if err := s.svc.Store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"ready": "ok"}).Write(w)
}
