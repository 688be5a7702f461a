package http

import (
	"context"
	"net/http"
	"time"

	"saifuu/internal/core"
	applog "saifuu/internal/log"
	"saifuu/internal/middleware/ratelimit"
	"saifuu/internal/middleware/security"
	"saifuu/internal/middleware/trace"
)

type CategoryStore interface {
	ListCategories(ctx context.Context, f core.CategoryFilter) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (*core.Category, error)
	CreateCategory(ctx context.Context, in core.NewCategory) (*core.Category, error)
	UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (*core.Category, error)
	DeleteCategory(ctx context.Context, id int64) (*core.Category, error)
	ReorderCategories(ctx context.Context, ids []int64) ([]core.Category, error)
}

type TransactionReader interface {
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, int64, error)
	TransactionStats(ctx context.Context, q core.StatsQuery) (*core.TransactionStats, error)
}

// TransactionWriter is satisfied by the repository itself or by
// services.TransactionService, which also publishes change events.
type TransactionWriter interface {
	CreateTransaction(ctx context.Context, in core.NewTransaction) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (*core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (*core.Transaction, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, id int64) (*core.Subscription, error)
	ListSubscriptions(ctx context.Context, q core.SubscriptionQuery) ([]core.Subscription, int64, error)
	CreateSubscription(ctx context.Context, in core.NewSubscription) (*core.Subscription, error)
	UpdateSubscription(ctx context.Context, id int64, p core.SubscriptionPatch) (*core.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) (*core.Subscription, error)
	SetSubscriptionActive(ctx context.Context, id int64, active bool) (*core.Subscription, bool, error)
	GetSubscriptionsDue(ctx context.Context, asOf core.Date) ([]core.Subscription, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores groups the backends the handlers talk to.
type Stores struct {
	Categories        CategoryStore
	Transactions      TransactionReader
	TransactionWriter TransactionWriter
	Subscriptions     SubscriptionStore
	DB                Pinger
}

type Options struct {
	Addr        string
	Logger      *applog.Logger
	DebugErrors bool
	RateLimit   ratelimit.Config
	// Now is the clock used for the default due date. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server

	stores      Stores
	logger      *applog.Logger
	debugErrors bool
	now         func() time.Time
	started     time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
}

func NewServer(opts Options, stores Stores) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		stores:           stores,
		logger:           logger,
		debugErrors:      opts.DebugErrors,
		now:              now,
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: security.NewDetector(),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(envelopeFallback(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories/create", s.handleCreateCategory)
	mux.HandleFunc("POST /api/categories/reorder", s.handleReorderCategories)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}/update", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}/delete", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/stats", s.handleTransactionStats)
	mux.HandleFunc("POST /api/transactions/create", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}/update", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}/delete", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("GET /api/subscriptions/due", s.handleSubscriptionsDue)
	mux.HandleFunc("POST /api/subscriptions/create", s.handleCreateSubscription)
	mux.HandleFunc("GET /api/subscriptions/{id}", s.handleGetSubscription)
	mux.HandleFunc("PUT /api/subscriptions/{id}/update", s.handleUpdateSubscription)
	mux.HandleFunc("DELETE /api/subscriptions/{id}/delete", s.handleDeleteSubscription)
	mux.HandleFunc("POST /api/subscriptions/{id}/activate", s.handleActivateSubscription)
	mux.HandleFunc("POST /api/subscriptions/{id}/deactivate", s.handleDeactivateSubscription)
}

// envelopeFallback renders the mux's own not-found and method-not-allowed
// replies as envelopes. The mux reports an empty pattern for both.
func envelopeFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}

		c := &statusCapture{header: http.Header{}}
		h.ServeHTTP(c, r)
		if c.status == http.StatusMethodNotAllowed {
			NewErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").
				Header("Allow", c.header.Get("Allow")).
				Write(w)
			return
		}
		NewErrorResponse(http.StatusNotFound, "Route not found").Write(w)
	})
}

// statusCapture records the status and headers of a reply and drops its body.
type statusCapture struct {
	header http.Header
	status int
}

func (c *statusCapture) Header() http.Header { return c.header }

func (c *statusCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
}

func (c *statusCapture) Write(b []byte) (int, error) {
	c.WriteHeader(http.StatusOK)
	return len(b), nil
}

// middleware wraps h, outermost first: tracing, request logger, security
// headers, suspicious request logging, then rate limiting.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(h)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.Middleware(s.logger, trace.GetRequestID)(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldErrorType, applog.ErrorTypeRateLimit,
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	NewErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again later").Write(w)
}

// today is the current UTC calendar date.
func (s *Server) today() core.Date {
	return core.DateOf(s.now().UTC())
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}
