// Package reqid attaches a per-request correlation id to the request
// context, for use as the Log entry id (spec.md §3) and in trace/log
// correlation.
//
// This is the teacher's internal/tenant/tenant.go context-attach pattern
// with the authentication gate removed: spec.md §1 Non-goals rule out
// "authentication on the management or proxy planes" for this engine, so
// the lookup-and-reject-on-missing-API-key behavior does not survive, but
// the context-value plumbing shape (Middleware attaches, FromContext
// reads) does.
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

var key = contextKey{}

// FromContext returns the request's correlation id, generating one if the
// request was never passed through Middleware (e.g. in unit tests).
func FromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(key).(uuid.UUID); ok {
		return id
	}
	return uuid.New()
}

// Middleware generates a uuid per request and stores it in the context.
// It never rejects a request — there is no authentication plane here.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, uuid.New())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
