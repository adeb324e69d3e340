// Package gateway exposes the core over a local HTTP surface: cached
// queries through the fallback router, plus index search and sync control.
// Degraded conditions (pre-launch, unsupported storage) answer with empty
// bodies, never 5xx.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/config"
	"github.com/mintlaunch/launchindex/pkg/index"
	"github.com/mintlaunch/launchindex/pkg/logging"
	"github.com/mintlaunch/launchindex/pkg/router"
	"github.com/mintlaunch/launchindex/pkg/syncer"
)

// Gateway is the local HTTP query surface.
type Gateway struct {
	router *router.Router
	store  *index.Store
	engine *syncer.Engine
	log    *logging.ColoredLogger
	srv    *http.Server
}

// New builds a gateway around the query router, the index store, and the
// sync engine.
func New(r *router.Router, store *index.Store, engine *syncer.Engine, cfg config.GatewayConfig, log *logging.ColoredLogger) *Gateway {
	g := &Gateway{
		router: r,
		store:  store,
		engine: engine,
		log:    log,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", g.handleHealth)
	mux.Route("/v1", func(v1 chi.Router) {
		v1.Get("/home", g.handleHome)
		v1.Post("/cards", g.handleCards)
		v1.Post("/portfolio", g.handlePortfolio)
		v1.Get("/leaderboard", g.handleLeaderboard)
		v1.Get("/search", g.handleSearch)
		v1.Get("/projects", g.handleProjects)
		v1.Get("/projects/{address}", g.handleProject)
		v1.Post("/sync", g.handleSync)
		v1.Get("/status", g.handleStatus)
	})

	g.srv = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Handler returns the HTTP handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.srv.Handler
}

// Start serves until Shutdown. Blocks.
func (g *Gateway) Start() error {
	g.log.ComponentInfo(logging.ComponentGateway, "gateway listening",
		zap.String("address", g.srv.Addr))
	if err := g.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
