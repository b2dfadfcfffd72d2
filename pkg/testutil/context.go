package testutil

import (
	"net/http"
	"time"

	"kyccase/pkg/requestcontext"
)

// WithActor sets the acting reviewer the way the metadata middleware would.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestTime pins the request clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
