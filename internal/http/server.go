package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/metrics"
	"rewards/internal/middleware/ratelimit"
	"rewards/internal/middleware/security"
	"rewards/internal/middleware/trace"
	"rewards/internal/rewards"
	"rewards/internal/services"
	appweb "rewards/web"
)

// SnapshotReader serves the monthly rows persisted by the snapshot worker.
type SnapshotReader interface {
	ListMonthlySnapshots(ctx context.Context, customerID string) ([]core.MonthlySnapshot, error)
}

type Server struct {
	http.Server
	templates    *template.Template
	rewards      *services.RewardsService
	transactions *services.TransactionService
	snapshots    SnapshotReader
	ready        func(ctx context.Context) error
	metrics      *metrics.Metrics
	cacheName    string
	logger       *log.Logger
	loc          *time.Location

	rateLimiter *ratelimit.Limiter
	rateConfig  ratelimit.Config
	detector    *security.Detector
	tracer      *trace.Middleware
	started     time.Time
}

type Option func(*Server)

// WithSnapshots exposes persisted monthly snapshots under the API.
func WithSnapshots(r SnapshotReader) Option {
	return func(s *Server) { s.snapshots = r }
}

// WithReadiness adds a backend check to /readyz.
func WithReadiness(check func(ctx context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// WithMetrics instruments routes and serves /metrics and /api/stats.
// cacheName is the loader whose hit rate /api/stats reports.
func WithMetrics(m *metrics.Metrics, cacheName string) Option {
	return func(s *Server) {
		s.metrics = m
		s.cacheName = cacheName
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLocation sets the calendar used to display transaction instants.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.rateConfig = cfg }
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. transactions may be nil, in which case recording is
// disabled.
func NewServer(addr string, rs *services.RewardsService, ts *services.TransactionService, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		rewards:      rs,
		transactions: ts,
		rateConfig:   ratelimit.DefaultConfig(),
		detector:     security.NewDetector(),
		loc:          time.Local,
		started:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentHTTP)
	}
	s.rateLimiter = ratelimit.NewLimiter(s.rateConfig)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	t, err := template.New("").Funcs(templateFuncs(s.loc)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(log.ComponentTemplate).Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	s.handle(mux, "GET /{$}", s.handleIndex)
	s.handle(mux, "GET /ui/rewards", s.handleRewardsPartial)
	s.handle(mux, "/transactions", s.handleRecordTransaction)
	s.handle(mux, "GET /api/customers", s.handleCustomers)
	s.handle(mux, "GET /api/customers/{id}/rewards", s.handleCustomerRewards)
	s.handle(mux, "GET /api/customers/{id}/snapshots", s.handleCustomerSnapshots)
	s.handle(mux, "GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.Handler = s.middleware(mux)
	return s
}

// middleware wraps the mux, outermost first: tracing, request-scoped
// logger, request screening, security headers, then POST throttling.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.rateConfig.Methods, s.onRateLimited)(next)
	h = security.NewHeaders(security.DefaultHeaderPolicy()).Middleware(h)
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

// handle registers h under pattern and records its latency per route.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.metrics == nil {
		mux.HandleFunc(pattern, h)
		return
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &trace.ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		h(rw, r)
		s.metrics.ObserveRequest(pattern, strconv.Itoa(rw.StatusCode), time.Since(start))
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, try again in a minute").Write(w)
}

// Shutdown stops background work and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"amount": formatAmount,
		"money":  formatMoney,
		"date": func(d rewards.Date) string {
			return formatDate(d, loc)
		},
	}
}
