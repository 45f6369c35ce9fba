// Package api provides the HTTP API server and handlers for the town server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/anjalik1505/town-functions-sub003/internal/ratelimit"
	"github.com/anjalik1505/town-functions-sub003/internal/sse"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// Options configures the HTTP edge.
type Options struct {
	AllowedOrigins []string
	// Limiter bounds requests per caller. Nil disables limiting.
	Limiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      *store.Store
	services   *Services
	hub        *sse.Hub
	sseHandler http.Handler
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, services *Services, hub *sse.Hub, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderUserID, HeaderUserRole, "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware)
	if opts.Limiter != nil {
		router.Use(RateLimitMiddleware(opts.Limiter, logger))
	}

	humaConfig := huma.DefaultConfig("Town API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"gateway": {
			Type: "apiKey",
			In:   "header",
			Name: HeaderUserID,
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s := &Server{
		store:    st,
		services: services,
		hub:      hub,
		router:   router,
		api:      humachi.New(router, humaConfig),
		logger:   logger,
		now:      time.Now,
	}
	RegisterErrorHandler()

	if hub != nil && services.Channels != nil {
		s.sseHandler = sse.NewHandler(hub, services.Channels, UserFromRequest, logger)
	}

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, e.g. for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerProfileRoutes()
	s.registerFriendRoutes()
	s.registerInvitationRoutes()
	s.registerGroupRoutes()
	s.registerUpdateRoutes()
	s.registerAdminRoutes()

	// The push stream is long-lived and bypasses the envelope.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}

// requestLogger logs one line per request at Info, or Warn for 5xx.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("took", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
