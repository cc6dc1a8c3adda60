package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/config"
	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/server/middleware"
	"github.com/jonathan/content-autopilot/internal/server/ratelimit"
	"github.com/jonathan/content-autopilot/internal/types"
)

// SiteStore reads and edits site autopilot settings.
type SiteStore interface {
	GetAutopilotConfig(ctx context.Context, siteID uuid.UUID) (*types.AutopilotConfig, error)
	UpdateAutopilotConfig(ctx context.Context, siteID uuid.UUID, update types.AutopilotConfigUpdate) (*types.AutopilotConfig, error)
}

// KeyStore lists the API keys that can be exchanged for tokens.
type KeyStore interface {
	ListActiveAPIKeys(ctx context.Context, organizationID uuid.UUID) ([]db.APIKey, error)
}

// Runner executes pipeline runs for a site.
type Runner interface {
	RunNow(ctx context.Context, siteID uuid.UUID, opts pipeline.RunOptions) (*pipeline.RunReport, error)
	Resume(ctx context.Context, siteID uuid.UUID, opts pipeline.RunOptions) (*pipeline.RunReport, error)
	RunReadyToday(ctx context.Context, siteID uuid.UUID, today time.Time, opts pipeline.RunOptions) (*pipeline.RunReport, error)
}

// Calendar manages scheduled runs.
type Calendar interface {
	Today() time.Time
	ListMonth(ctx context.Context, siteID uuid.UUID, ym calendar.YearMonth) ([]types.ScheduledRun, error)
	ToggleDay(ctx context.Context, siteID uuid.UUID, date time.Time) (*calendar.ToggleResult, error)
	ScheduleMonth(ctx context.Context, siteID uuid.UUID, ym calendar.YearMonth, weekdays []int, today time.Time) ([]types.ScheduledRun, error)
	ReadyToday(ctx context.Context, siteID uuid.UUID, today time.Time) ([]types.ScheduledRun, error)
	CreateRuns(ctx context.Context, siteID uuid.UUID, dates []time.Time) ([]types.ScheduledRun, error)
	DeleteRun(ctx context.Context, siteID uuid.UUID, date time.Time) error
}

// Config holds server configuration
type Config struct {
	Addr      string
	JWT       *config.JWTConfig
	APIKeys   *config.APIKeyConfig
	RateLimit *ratelimit.Config

	// Publish defaults applied when a run request does not set them.
	GenerateThumbnail bool
	SubmitIndexing    bool
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Sites    SiteStore
	Keys     KeyStore
	Runner   Runner
	Calendar Calendar
	Logger   *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	sites       SiteStore
	runner      Runner
	calendar    Calendar
	jwtService  *JWTService
	authHandler *AuthHandler
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger

	generateThumbnail bool
	submitIndexing    bool
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		sites:             deps.Sites,
		runner:            deps.Runner,
		calendar:          deps.Calendar,
		jwtService:        NewJWTService(cfg.JWT),
		rateLimiter:       ratelimit.NewLimiter(cfg.RateLimit),
		logger:            logger.With("component", "server"),
		generateThumbnail: cfg.GenerateThumbnail,
		submitIndexing:    cfg.SubmitIndexing,
	}
	s.authHandler = NewAuthHandler(deps.Keys, cfg.APIKeys, s.jwtService)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // Runs generate and publish synchronously
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/token", s.authHandler.IssueToken)

	// Autopilot settings and runs
	mux.Handle("GET /sites/{site_id}/autopilot", protected(s.handleGetAutopilot))
	mux.Handle("PATCH /sites/{site_id}/autopilot", protected(s.handleUpdateAutopilot))
	mux.Handle("POST /sites/{site_id}/autopilot/run", protected(s.handleRunNow))
	mux.Handle("POST /sites/{site_id}/autopilot/run/stream", protected(s.handleRunStream))
	mux.Handle("POST /sites/{site_id}/autopilot/resume", protected(s.handleResume))

	// Calendar
	mux.Handle("GET /sites/{site_id}/calendar", protected(s.handleListCalendar))
	mux.Handle("POST /sites/{site_id}/calendar", protected(s.handleCreateScheduledRuns))
	mux.Handle("POST /sites/{site_id}/calendar/schedule-month", protected(s.handleScheduleMonth))
	mux.Handle("POST /sites/{site_id}/calendar/{date}/toggle", protected(s.handleToggleDay))
	mux.Handle("DELETE /sites/{site_id}/calendar/{date}", protected(s.handleDeleteScheduledRun))
	mux.Handle("GET /sites/{site_id}/calendar/ready", protected(s.handleReadyToday))
	mux.Handle("POST /sites/{site_id}/calendar/run-ready", protected(s.handleRunReady))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming working through the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// handleError maps err to a status and writes it. Unexpected failures are
// logged and their detail withheld from the client.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.errorResponse(w, status, "internal error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.logger.Warn("rate limit exceeded", "path", r.URL.Path, "client", s.extractClientID(r), "limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
