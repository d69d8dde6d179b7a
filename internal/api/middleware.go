// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/interestengine/internal/apperr"
	"github.com/tomtom215/interestengine/internal/obslog"
	"github.com/tomtom215/interestengine/internal/obsmetrics"
	"github.com/tomtom215/interestengine/internal/tenantauth"
)

type tenantContextKey struct{}

// tenantFromContext returns the tenant id attached by Authenticate, or
// "" if the request was never authenticated (the token-issuance,
// /healthz and /metrics routes run without it).
func tenantFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tenantContextKey{}).(string)
	return t
}

// Authenticate resolves a bearer token to a tenant id via auth and
// attaches it to the request context, grounded on the teacher's
// middleware.Authenticate but narrowed to the thin tenant-resolution
// contract SPEC_FULL's ambient-auth scope calls for.
func Authenticate(auth *tenantauth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				apperr.RespondError(w, time.Now(), obslog.CorrelationIDFromContext(r.Context()), apperr.ErrInvalidInput)
				return
			}

			claims, err := auth.Authenticate(token)
			if err != nil {
				apperr.RespondError(w, time.Now(), obslog.CorrelationIDFromContext(r.Context()), apperr.ErrInvalidInput)
				return
			}

			ctx := context.WithValue(r.Context(), tenantContextKey{}, claims.Tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDWithLogging stamps every request with a correlation id and
// logs its completion, mirroring the teacher's RequestIDWithLogging.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := obslog.ContextWithNewCorrelationID(r.Context())
			r = r.WithContext(ctx)
			w.Header().Set("X-Correlation-ID", obslog.CorrelationIDFromContext(ctx))

			next.ServeHTTP(w, r)

			obslog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

// PrometheusMetrics records per-route request counts and latency,
// mirroring the teacher's middleware.PrometheusMetrics.
func PrometheusMetrics(routeLabel string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			obsmetrics.ObserveAPIRequest(r.Method, routeLabel, statusClass(rec.status), time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
