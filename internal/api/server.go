package api

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/catalog"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/health"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/httputil"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/metrics"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/predict"
)

// Predictor runs one prediction request.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (predict.Report, error)
	Config() predict.Config
}

// HistoryReader lists recorded runs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Deps are the collaborators of the HTTP server. History may be nil.
type Deps struct {
	Catalog   *catalog.Catalog
	Predictor Predictor
	History   HistoryReader
	ChartDir  string
	Ready     *health.Checker
	Web       fs.FS // holds templates/index.html and static/

	// TrustProxy logs the client address from forwarding headers.
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) (*Server, error) {
	handler, err := newHandler(logger, deps)
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      predictTimeout + 15*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}, nil
}

// newHandler builds the routed handler wrapped in the middleware chain
// metrics -> logging -> mux.
func newHandler(logger *slog.Logger, deps Deps) (http.Handler, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"utc": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") },
	}).ParseFS(deps.Web, "templates/index.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(deps.Web, "static")
	if err != nil {
		return nil, err
	}
	ready := deps.Ready
	if ready == nil {
		ready = health.NewChecker()
	}

	h := &handlers{
		logger:    logger,
		catalog:   deps.Catalog,
		predictor: deps.Predictor,
		history:   deps.History,
		chartDir:  deps.ChartDir,
		page:      page,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", ready.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /generate", h.generate)
	mux.HandleFunc("GET /charts/{file}", h.chart)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /api/v1/catalog", h.catalogJSON)
	mux.HandleFunc("GET /api/v1/history", h.historyJSON)

	var handler http.Handler = mux
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler, nil
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
