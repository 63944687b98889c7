package middleware

import (
	"log/slog"
	"net/http"

	"github.com/GlennOnyango/housing-nest-be/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, identity_id, trace_id, and span_id, then stores it in
// context via logger.NewContext. Downstream handlers retrieve it with
// logger.FromContext(ctx).
//
// This middleware should be mounted AFTER RequestLogging (which sets
// correlation_id) and Tracing (which sets the OpenTelemetry span context).
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Pick up identity_id from the auth middleware context key or the
			// X-Identity-ID header (used by services that don't run Auth middleware).
			identityID := IdentityIDFromContext(ctx)
			if identityID == "" {
				identityID = r.Header.Get("X-Identity-ID")
			}
			if identityID != "" {
				ctx = logger.WithIdentityID(ctx, identityID)
			}

			// Build enriched logger with all available context fields
			// (correlation_id, identity_id, trace_id, span_id).
			enriched := logger.WithContext(ctx, base)

			// Store the enriched logger in context for downstream handlers.
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
