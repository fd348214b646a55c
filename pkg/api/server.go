package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/osovm/veilmint/pkg/catalog"
	"github.com/osovm/veilmint/pkg/mint"
	"github.com/osovm/veilmint/pkg/observability"
	"github.com/osovm/veilmint/pkg/projector"
	"github.com/osovm/veilmint/pkg/store"
)

// Server wires the minting ledger and its supporting services into an
// HTTP handler.
type Server struct {
	ledger   *mint.Ledger
	receipts store.ReceiptLog
	registry *catalog.Catalog
	forecast *projector.Projector
	slo      *observability.SLOTracker
	schemas  *schemaSet
	logger   *slog.Logger
	clock    func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithClock overrides the server clock for tests.
func WithClock(clock func() time.Time) ServerOption {
	return func(s *Server) { s.clock = clock }
}

// WithSLOTracker sets the SLO tracker fed by mint/revert/project handlers.
func WithSLOTracker(t *observability.SLOTracker) ServerOption {
	return func(s *Server) { s.slo = t }
}

// NewServer builds a Server over the given ledger and stores.
func NewServer(ledger *mint.Ledger, receipts store.ReceiptLog, registry *catalog.Catalog, forecast *projector.Projector, opts ...ServerOption) (*Server, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{
		ledger:   ledger,
		receipts: receipts,
		registry: registry,
		forecast: forecast,
		slo:      observability.NewSLOTracker(),
		schemas:  schemas,
		logger:   slog.Default().With("component", "api"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes returns the service mux with middleware applied.
func (s *Server) Routes(limiter *GlobalRateLimiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/veils", s.handleVeils)
	mux.HandleFunc("GET /api/veils/{id}", s.handleVeil)
	mux.HandleFunc("POST /api/mint", s.handleMint)
	mux.HandleFunc("POST /api/revert", s.handleRevert)
	mux.HandleFunc("POST /api/project", s.handleProject)
	mux.HandleFunc("GET /api/wallet/{principal}", s.handleWallet)
	mux.HandleFunc("GET /api/receipts", s.handleReceipts)
	mux.HandleFunc("GET /api/receipts/{id}", s.handleReceipt)
	mux.HandleFunc("GET /api/tithe", s.handleTithe)
	mux.HandleFunc("GET /api/slo", s.handleSLO)

	var handler http.Handler = mux
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	handler = RequestLogger(s.logger, handler)
	handler = RequestID(handler)
	return handler
}
