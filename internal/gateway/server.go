package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter wires every route. /health and /metrics stay public for
// probes and scrapers.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.counters.countRequests)

	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter, g.counters))
		r.Get("/status", g.handleStatus())
		r.Get("/ws/status", g.handleStatusStream())
		r.Route("/api", func(r chi.Router) {
			r.Get("/runs", g.handleListRuns())
			r.Get("/modules", g.handleListModules())
			// Triggering work needs an identity to audit.
			if g.config.Auth.IsConfigured() {
				r.Post("/run", g.handleRunNow())
			}
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
