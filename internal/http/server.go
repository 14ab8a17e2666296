// Package http exposes the ledger as a JSON API. Callers are identified by
// headers set by the authenticating proxy in front of the service.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"welth/internal/ai"
	applog "welth/internal/log"
	"welth/internal/middleware/ratelimit"
	"welth/internal/middleware/security"
	"welth/internal/middleware/trace"
	"welth/internal/services"
)

// ReceiptScanner extracts transaction fields from a receipt image.
type ReceiptScanner interface {
	ScanReceipt(ctx context.Context, image []byte, mimeType string) (ai.ReceiptData, error)
}

// ReceiptArchiver keeps the uploaded image and returns where it went.
type ReceiptArchiver interface {
	Store(ctx context.Context, userID string, image []byte, mimeType string) (string, error)
}

// Options wires the server. Receipts and Archive may be nil; without a
// scanner the receipt endpoint answers 503.
type Options struct {
	Ledger   *services.LedgerService
	Stats    *services.StatsAggregator
	Receipts ReceiptScanner
	Archive  ReceiptArchiver
	// Ready reports whether dependencies (the database) are usable.
	Ready func(ctx context.Context) error

	MaxReceiptBytes int64
	// TransactionRetryAfter is advertised when the per-user write limit trips.
	TransactionRetryAfter time.Duration
	// ClientLimit bounds requests per client IP across the whole API.
	ClientLimit ratelimit.Config
	Logger      *applog.Logger
}

type Server struct {
	http.Server
	ledger                *services.LedgerService
	stats                 *services.StatsAggregator
	receipts              ReceiptScanner
	archive               ReceiptArchiver
	ready                 func(ctx context.Context) error
	maxReceiptBytes       int64
	transactionRetryAfter time.Duration
	now                   func() time.Time

	clientLimiter *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware
	shutdownOnce  sync.Once
}

func NewServer(addr string, opts Options) *Server {
	s := &Server{
		ledger:                opts.Ledger,
		stats:                 opts.Stats,
		receipts:              opts.Receipts,
		archive:               opts.Archive,
		ready:                 opts.Ready,
		maxReceiptBytes:       opts.MaxReceiptBytes,
		transactionRetryAfter: opts.TransactionRetryAfter,
		now:                   time.Now,
		clientLimiter:         ratelimit.NewLimiter(opts.ClientLimit),
		detector:              security.NewDetector(),
	}
	if s.maxReceiptBytes <= 0 {
		s.maxReceiptBytes = 5 << 20
	}
	if s.transactionRetryAfter <= 0 {
		s.transactionRetryAfter = time.Hour
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.clientLimiter.Middleware(s.detector.ExtractClientIP, s.onClientLimit)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/accounts", s.authenticated(s.handleCreateAccount))
	mux.Handle("GET /api/accounts", s.authenticated(s.handleListAccounts))
	mux.Handle("GET /api/accounts/{id}", s.authenticated(s.handleGetAccount))
	mux.Handle("PUT /api/accounts/{id}/default", s.authenticated(s.handleSetDefaultAccount))

	mux.Handle("POST /api/transactions", s.authenticated(s.handleCreateTransaction))
	mux.Handle("POST /api/transactions/bulk-delete", s.authenticated(s.handleBulkDelete))
	mux.Handle("GET /api/transactions/{id}", s.authenticated(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", s.authenticated(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.authenticated(s.handleDeleteTransaction))

	mux.Handle("POST /api/receipts/scan", s.authenticated(s.handleScanReceipt))
	mux.Handle("GET /api/stats/monthly", s.authenticated(s.handleMonthlyStats))

	mux.Handle("PUT /api/budget", s.authenticated(s.handleUpsertBudget))
	mux.Handle("GET /api/budget", s.authenticated(s.handleGetBudget))
}

func (s *Server) onClientLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Client rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r))
	ErrorResponse(r, http.StatusTooManyRequests, "rate limit exceeded").
		RetryAfter(s.clientLimiter.RetryAfter()).
		Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			ErrorResponse(r, http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.clientLimiter.Stop)
	return s.Server.Shutdown(ctx)
}
