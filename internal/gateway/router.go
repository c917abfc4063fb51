package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public.
	r.Get("/health", g.handleHealth())
	r.Post("/chat", g.handleChat())
	r.Get("/ws/chat", g.handleWSChat())

	// Operational endpoints, behind the bearer token when one is set.
	r.Group(func(r chi.Router) {
		if g.config.AuthToken != "" {
			r.Use(authMiddleware(g.config.AuthToken))
		}
		r.Get("/status", g.handleStatus())
		if g.gatherer != nil {
			r.Method(http.MethodGet, "/metrics",
				promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
		}
	})

	return r
}
