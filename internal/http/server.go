package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	applog "proiezioni/internal/log"
	"proiezioni/internal/middleware/ratelimit"
	"proiezioni/internal/middleware/security"
	"proiezioni/internal/middleware/trace"
	"proiezioni/internal/services"
	appweb "proiezioni/web"
)

const (
	defaultComputeTimeout = 10 * time.Second
	readinessTimeout      = 2 * time.Second
)

// ReadinessCheck is run by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options tune the server. Zero values use defaults.
type Options struct {
	RateLimitPerMinute int
	ComputeTimeout     time.Duration
	Logger             *applog.Logger
	Checks             []ReadinessCheck
}

type Server struct {
	http.Server
	templates *template.Template
	scenarios *services.ScenarioService
	logger    *applog.Logger
	events    *applog.StructuredLogger
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	detector  *security.Detector
	checks    []ReadinessCheck
	timeout   time.Duration
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.ScenarioService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = defaultComputeTimeout
	}

	rl := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rl.RequestsPerWindow = opts.RateLimitPerMinute
	}
	detector := security.NewDetector(logger.Logger)

	s := &Server{
		scenarios: svc,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		limiter:   ratelimit.NewLimiter(rl),
		tracer:    trace.NewMiddleware(detector.ClientIP, logger.Logger),
		detector:  detector,
		checks:    opts.Checks,
		timeout:   opts.ComputeTimeout,
		now:       time.Now,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /projection", s.handleProjection)
	mux.HandleFunc("POST /projection/monthly", s.handleMonthlyProjection)
	mux.HandleFunc("POST /loans/schedule", s.handleLoanSchedule)

	mux.HandleFunc("GET /scenarios", s.handleListScenarios)
	mux.HandleFunc("POST /scenarios", s.handleCreateScenario)
	mux.HandleFunc("GET /scenarios/{id}", s.handleGetScenario)
	mux.HandleFunc("PUT /scenarios/{id}", s.handleUpdateScenario)
	mux.HandleFunc("DELETE /scenarios/{id}", s.handleDeleteScenario)
	mux.HandleFunc("GET /scenarios/{id}/projection", s.handleScenarioProjection)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// middleware wraps the mux, outermost first: scan detection, tracing,
// request-scoped logger, security headers, rate limiting of writes.
func (s *Server) middleware(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ClientIP(r), "method", r.Method, "path", r.URL.Path)
		s.errorResponse(r, http.StatusTooManyRequests, "Troppe richieste, riprova tra poco").Write(w)
	}
	h = s.limiter.Middleware(s.detector.ClientIP, onLimit, http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = applog.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	return s.detector.Middleware(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// respond writes data as JSON or renders it with the named template.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if wantsJSON(r) {
		b.JSON(data).Write(w)
		return
	}
	s.render(w, r, b, name, data)
}

// render writes the named template as an HTML response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		InternalServerError("Template non disponibili").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
		InternalServerError("Errore di visualizzazione").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

// fail classifies err, logs it and writes the error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := classifyError(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
	} else {
		logger.WarnContext(r.Context(), "Request rejected", "operation", op, "status_code", status, "error", err)
	}
	if status < http.StatusInternalServerError && wantsJSON(r) {
		msg = err.Error()
	}
	s.errorResponse(r, status, msg).Write(w)
}

func (s *Server) errorResponse(r *http.Request, status int, msg string) *HTMXResponseBuilder {
	if wantsJSON(r) {
		return JSONError(status, msg)
	}
	return ErrorResponse(status, msg)
}

// computeContext bounds projection work.
func (s *Server) computeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}
