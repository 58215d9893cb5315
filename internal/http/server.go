package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/log"
	"geekbudget/internal/services"
)

// Views is the view service surface the API exposes.
type Views interface {
	BudgetMatrix(ctx context.Context, req services.MatrixRequest) (budget.Matrix, error)
	AggregationTables(ctx context.Context, req services.TableRequest) ([]aggregation.Table, error)
	SaveBudgetCell(ctx context.Context, edit services.CellEdit) (services.SaveResult, error)
}

type Options struct {
	// RateLimitPerMinute caps POST requests per client IP; zero means 60.
	RateLimitPerMinute int
	// Ready reports whether backing stores can serve requests.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	views       Views
	ready       func(ctx context.Context) error
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, views Views, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	limit := opts.RateLimitPerMinute
	if limit <= 0 {
		limit = 60
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		views:       views,
		ready:       opts.Ready,
		logger:      logger,
		rateLimiter: newRateLimiter(limit, time.Minute),
		metrics:     &securityMetrics{},
		started:     time.Now(),
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/budget-matrix", s.withMiddleware(s.handleBudgetMatrix))
	mux.HandleFunc("/api/budget-matrix/cells", s.withMiddleware(s.handleSaveCell))
	mux.HandleFunc("/api/aggregation-tables", s.withMiddleware(s.handleAggregationTables))
	mux.HandleFunc("/", s.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds request ids, a request scoped logger, security headers,
// rate limiting for writes and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
		}

		reqLogger := s.logger.With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), reqLogger)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		setSecurityHeaders(w.Header())

		if reason, ok := detectSuspiciousRequest(r, s.metrics); ok {
			reqLogger.WarnContext(ctx, "Suspicious request detected",
				"reason", reason, log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			reqLogger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeError(rw, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		} else {
			next(rw, r)
		}

		log.NewStructuredLogger(reqLogger).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
