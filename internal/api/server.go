// Package api exposes the matching trigger and read endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lease-match/internal/analytics"
	"github.com/sells-group/lease-match/internal/auth"
	"github.com/sells-group/lease-match/internal/geospatial"
	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/store"
)

// Runner triggers a batch run. *batch.Runner satisfies it.
type Runner interface {
	RunBatch(ctx context.Context, minScore int) (*model.BatchStats, error)
}

// ReadStore is the read side of the store the endpoints need.
type ReadStore interface {
	CountMatches(ctx context.Context) (int, error)
	CountActiveListings(ctx context.Context) (int, error)
	CountActiveOpportunities(ctx context.Context, asOf time.Time) (int, error)
	ListMatches(ctx context.Context, filter store.MatchFilter) ([]model.Match, error)
	ListRuns(ctx context.Context, limit int) ([]model.BatchStats, error)
}

// DensityQuerier scores federal density for a point. *geospatial.DensityScorer
// satisfies it.
type DensityQuerier interface {
	ValidateQuery(lat, lng, radiusMiles float64) error
	Score(ctx context.Context, lat, lng, radiusMiles float64) (*model.FederalDensityScore, error)
}

// Deps are the collaborators of the server. Density and Inventory may be nil,
// in which case the geo endpoints answer 503.
type Deps struct {
	Runner    Runner
	Store     ReadStore
	Analytics *analytics.Service
	Density   DensityQuerier
	Inventory geospatial.Inventory
	Auth      *auth.Authenticator
}

// Config holds HTTP settings.
type Config struct {
	Port               int
	DefaultMinScore    int
	DensityRadiusMiles float64
	AllowedOrigins     []string
	TriggerRatePerMin  int
	// RunBudget is the batch wall-clock budget. The trigger responds
	// synchronously, so the write timeout must outlast it.
	RunBudget          time.Duration
}

// Trigger write timeout tuning.
const (
	defaultRunBudget = 240 * time.Second
	writeMargin      = time.Minute
)

// Server is the HTTP API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        Config
	deps       Deps
	limiter    *rate.Limiter
	nowFunc    func() time.Time
}

// NewServer wires the routes and middleware.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.DensityRadiusMiles <= 0 {
		cfg.DensityRadiusMiles = 5
	}
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		deps:    deps,
		nowFunc: time.Now,
	}
	if cfg.TriggerRatePerMin > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.TriggerRatePerMin)), cfg.TriggerRatePerMin)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.health)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/matching", func(r chi.Router) {
			r.With(s.requireAuth, s.rateLimit).Post("/run", s.triggerRun)
			r.Get("/status", s.matchingStatus)
			r.Get("/matches", s.listMatches)
			r.Get("/runs", s.listRuns)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/scores", s.scoreReport)
			r.Get("/prefilter", s.prefilterReport)
			r.Get("/top", s.topReport)
			r.Get("/density", s.densityReport)
			r.Get("/inventory", s.inventoryReport)
		})

		r.Route("/geo", func(r chi.Router) {
			r.Get("/density", s.densityAt)
			r.Get("/properties", s.propertiesInViewport)
		})
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.writeTimeout(),
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("api: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("api: starting server", zap.Int("port", s.cfg.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

// writeTimeout covers a trigger that blocks for the whole run budget.
func (s *Server) writeTimeout() time.Duration {
	budget := s.cfg.RunBudget
	if budget <= 0 {
		budget = defaultRunBudget
	}
	return budget + writeMargin
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
