package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/swimresults/internal/core"
)

// withRequestSource tags ctx with the client address so the upload history
// and commit announcements say where a file came from.
func withRequestSource(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithSource(ctx, "web "+clientIP(r))
}

// clientIP returns the request's remote IP without the port. RemoteAddr has
// already been rewritten by TrustedRealIP when the peer is a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
