// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/interestengine/internal/engine"
	"github.com/tomtom215/interestengine/internal/httpvalidate"
	"github.com/tomtom215/interestengine/internal/tenantauth"
)

// Router wires the engine registry, auth manager and filter grammar
// config into Chi routes, grounded on the teacher's Router/SetupChi
// split (internal/api/chi_router.go).
type Router struct {
	registry    *engine.Registry
	auth        *tenantauth.Manager
	filterCfg   httpvalidate.FilterConfig
	corsOrigins []string
	rateLimit   int
}

// NewRouter builds a Router over an already-constructed Registry and
// auth Manager.
func NewRouter(registry *engine.Registry, auth *tenantauth.Manager, corsOrigins []string, rateLimitPerSecond int) *Router {
	return &Router{
		registry:    registry,
		auth:        auth,
		filterCfg:   httpvalidate.DefaultFilterConfig(),
		corsOrigins: corsOrigins,
		rateLimit:   rateLimitPerSecond,
	}
}

// Handler builds the complete chi.Router for the §6 HTTP surface.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", rt.health)

	r.Route("/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(5, time.Minute)).Post("/token", rt.issueToken)
	})

	h := &documentHandler{registry: rt.registry, filterCfg: rt.filterCfg}
	ih := &interactionHandler{registry: rt.registry}
	sh := &searchHandler{registry: rt.registry, filterCfg: rt.filterCfg}

	r.Route("/", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.rateLimit, time.Second))
		r.Use(PrometheusMetrics("api"))
		r.Use(Authenticate(rt.auth))

		r.Post("/documents", h.upsert)
		r.Delete("/documents", h.deleteBatch)
		r.Delete("/documents/{id}", h.deleteOne)
		r.Get("/documents/{id}/properties", h.getProperties)
		r.Put("/documents/{id}/properties", h.putProperties)
		r.Delete("/documents/{id}/properties", h.deleteAllProperties)
		r.Delete("/documents/{id}/properties/{propertyID}", h.deleteProperty)

		r.Post("/users/{id}/interactions", ih.record)
		r.Post("/users/{id}/recommendations", ih.recommend)
		r.Delete("/users/{id}", ih.deleteUser)

		r.Post("/semantic_search", sh.search)
	})

	return r
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
