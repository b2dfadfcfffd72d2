// Package metadata copies caller metadata from request headers into the
// request context so services can record who acted.
package metadata

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"kyccase/pkg/requestcontext"
)

// HeaderActor names the reviewer acting on a case. Authentication is handled
// upstream; the engine only records the value on history entries.
const HeaderActor = "X-Actor"

const maxActorLength = 128

// CaseMetadata stores the actor and the chi request ID in the context.
// Apply after middleware.RequestID.
func CaseMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if actor := ActorFromRequest(r); actor != "" {
			ctx = requestcontext.WithActor(ctx, actor)
		}
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromRequest returns the trimmed actor header, truncated to a sane length.
func ActorFromRequest(r *http.Request) string {
	actor := strings.TrimSpace(r.Header.Get(HeaderActor))
	if len(actor) > maxActorLength {
		actor = actor[:maxActorLength]
	}
	return actor
}
