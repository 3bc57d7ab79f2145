// Package http serves the JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"finbot/internal/core"
	"finbot/internal/intake"
	"finbot/internal/log"
	"finbot/internal/metrics"
)

// Ledger is what the API needs from the ledger service.
type Ledger interface {
	Dashboard() core.Dashboard
	Statistics(period core.Period, typ core.TxType) (core.Statistics, error)
	History(f core.HistoryFilter) []core.DayGroup
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id core.ID) error
	CorrectBalance(ctx context.Context, target int64) core.Settings
	Settings() core.Settings
	UpdateSettings(ctx context.Context, s core.Settings) (core.Settings, bool, error)
	Pull(ctx context.Context) bool
}

// Intake handles chat submissions.
type Intake interface {
	Handle(ctx context.Context, in intake.Input) (intake.Reply, error)
	ProcessPending(ctx context.Context, id core.ID) (core.Transaction, error)
	Advice(ctx context.Context) string
}

type ChatHistory interface {
	ChatHistory() []core.ChatMessage
}

type TestNotifier interface {
	SendTest(ctx context.Context) error
}

type Backup interface {
	Export() ([]byte, error)
	Import(ctx context.Context, data []byte) bool
}

// Deps are the services behind the API.
type Deps struct {
	Ledger   Ledger
	Intake   Intake
	Chat     ChatHistory
	Notifier TestNotifier
	Backup   Backup
}

// Options tune the server. Zero values use the defaults.
type Options struct {
	RateLimit  int
	RateWindow time.Duration
}

type Server struct {
	http.Server
	deps        Deps
	logger      *log.Logger
	metrics     *metrics.Metrics
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Server{
		deps:        deps,
		logger:      logger.WithComponent(log.ComponentHTTP),
		metrics:     m,
		rateLimiter: newRateLimiter(opts.RateLimit, opts.RateWindow),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.rateLimiter.startCleanup()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger, func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.requestLogging)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(s.limitPOST)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/statistics", s.handleStatistics)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Post("/", s.handleCreateTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
			r.Post("/{id}/process", s.handleProcessPending)
		})

		r.Post("/balance", s.handleCorrectBalance)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)

		r.Post("/sync/pull", s.handlePull)
		r.Post("/sync/test", s.handleSyncTest)

		r.Get("/chat", s.handleChatHistory)
		r.Post("/chat", s.handleChat)
		r.Get("/advice", s.handleAdvice)

		r.Post("/notify/test", s.handleNotifyTest)

		r.Get("/backup", s.handleExport)
		r.Post("/backup", s.handleImport)
	})

	return r
}

// requestLogging logs every request on completion and records HTTP metrics
// under the matched route pattern.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		if isSuspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		log.LogRequest(r.Context(), r, status, elapsed, clientIP)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.RecordHTTP(r.Method, route, strconv.Itoa(status), elapsed)
	})
}

// limitPOST applies the per-IP budget to POST requests only.
func (s *Server) limitPOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			clientIP := extractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(s.rateLimiter.window.Seconds())))
				writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
