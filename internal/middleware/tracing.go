package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
)

// Tracing opens a span named after the request path for every request
// that passes through it.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer("chaos-proxy")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.URL.Path)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
