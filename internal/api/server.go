package api

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/prep-area/internal/api/handlers"
	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/api/websocket"
	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/metrics"
)

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	host       string
	port       int

	allowedOrigins []string
	maxUploadBytes int64
	importLimiter  *rate.Limiter
	metrics        *metrics.ServerMetrics

	// WebSocket hub for real-time events
	wsHub *websocket.Hub

	cardFacade       handlers.CardService
	collectionFacade handlers.CollectionService
	tradeFacade      handlers.TradeService
	teamFacade       handlers.TeamService
	systemFacade     handlers.SystemService
}

// Config holds configuration for the API server.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string

	// ImportRate is the sustained number of CSV imports allowed per second
	// and ImportBurst the number allowed at once.
	ImportRate  float64
	ImportBurst int

	MaxUploadBytes int64
	Logger         *slog.Logger
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           8787,
		AllowedOrigins: []string{"http://localhost:5173"},
		ImportRate:     1,
		ImportBurst:    5,
		MaxUploadBytes: 10 << 20,
	}
}

// Facades holds the services behind each route group.
type Facades struct {
	Card       handlers.CardService
	Collection handlers.CollectionService
	Trade      handlers.TradeService
	Team       handlers.TeamService
	System     handlers.SystemService
}

// FacadesFrom adapts the application facades to the API's service
// interfaces.
func FacadesFrom(f *app.Facades) *Facades {
	return &Facades{
		Card:       f.Card,
		Collection: f.Collection,
		Trade:      f.Trade,
		Team:       f.Team,
		System:     f.System,
	}
}

// NewServer creates a new API server with the given facades. When
// dispatcher is non-nil, application events are forwarded to WebSocket
// clients.
func NewServer(cfg *Config, facades *Facades, dispatcher *events.EventDispatcher) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if facades == nil {
		facades = &Facades{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	wsHub := websocket.NewHub(websocket.HubConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	importRate := rate.Limit(cfg.ImportRate)
	if cfg.ImportRate <= 0 {
		importRate = rate.Inf
	}

	s := &Server{
		router:           chi.NewRouter(),
		host:             cfg.Host,
		port:             cfg.Port,
		allowedOrigins:   cfg.AllowedOrigins,
		maxUploadBytes:   cfg.MaxUploadBytes,
		importLimiter:    rate.NewLimiter(importRate, max(1, cfg.ImportBurst)),
		metrics:          metrics.NewServerMetrics(metricsSamples),
		wsHub:            wsHub,
		cardFacade:       facades.Card,
		collectionFacade: facades.Collection,
		tradeFacade:      facades.Trade,
		teamFacade:       facades.Team,
		systemFacade:     facades.System,
	}

	if dispatcher != nil {
		dispatcher.Register(websocket.NewWebSocketObserver(wsHub))
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// metricsSamples is the number of latency samples kept per route group.
const metricsSamples = 2048

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	// Request ID for tracing
	s.router.Use(middleware.RequestID)

	// Real IP detection
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(middleware.Logger)

	// Request metrics, outside Recoverer so panics count as 500s
	s.router.Use(s.observe)

	// Panic recovery
	s.router.Use(middleware.Recoverer)

	// Request timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// jsonBody enforces application/json for requests with bodies.
func jsonBody(next http.Handler) http.Handler {
	return requireContentType("application/json")(next)
}

// csvBody accepts the content types browsers and scripts send for CSV files.
func csvBody(next http.Handler) http.Handler {
	return requireContentType("text/csv", "text/plain", "application/csv", "application/vnd.ms-excel", "application/octet-stream")(next)
}

// requireContentType rejects POST, PUT and PATCH requests whose body has a
// media type outside allowed.
func requireContentType(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only check content-type for methods that typically have request bodies
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			// Skip if there's no content
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err == nil {
				for _, a := range allowed {
					if strings.EqualFold(mediaType, a) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			response.Error(w, http.StatusUnsupportedMediaType,
				fmt.Errorf("Content-Type must be one of: %s", strings.Join(allowed, ", ")))
		})
	}
}

// limitUpload caps the request body at the configured upload size.
func (s *Server) limitUpload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.maxUploadBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitImports rejects imports beyond the configured rate.
func (s *Server) rateLimitImports(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := s.importLimiter.Reserve()
		if !reservation.OK() {
			response.Error(w, http.StatusTooManyRequests, fmt.Errorf("import rate limit exceeded"))
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			response.Error(w, http.StatusTooManyRequests, fmt.Errorf("import rate limit exceeded, retry in %s", delay.Round(time.Second)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe records the status and latency of every request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Observe(routeGroup(r), status, time.Since(start))
	})
}

// routeGroup buckets a request by the kind of work it does.
func routeGroup(r *http.Request) metrics.RouteGroup {
	switch {
	case strings.HasSuffix(r.URL.Path, "/import"):
		return metrics.GroupImport
	case strings.HasSuffix(r.URL.Path, "/export"):
		return metrics.GroupExport
	case r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions:
		return metrics.GroupRead
	default:
		return metrics.GroupWrite
	}
}

// getMetrics serves the request metrics.
func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.metrics.Snapshot())
}

// Metrics returns the request metrics collector.
func (s *Server) Metrics() *metrics.ServerMetrics {
	return s.metrics
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Start starts the API server in a goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}

	// Start WebSocket hub
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("[API] Server listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[API] Server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}

	log.Println("[API] Shutting down server...")
	return s.httpServer.Shutdown(ctx)
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// WebSocketHub returns the WebSocket hub.
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
