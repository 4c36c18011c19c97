package testutil

import (
	"net/http"

	"marketroles/pkg/requestcontext"
)

// WithActor attaches an authenticated market actor to req, as the auth
// middleware does.
func WithActor(req *http.Request, gln string, roles ...string) *http.Request {
	actor := requestcontext.MarketActor{GLN: gln, Roles: roles}
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
