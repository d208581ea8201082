package mcp

import (
	"net/http"
	"strings"
)

// AuthMiddleware gates the MCP endpoint behind a shared API key. The
// Authorization header may carry the key bare or as a Bearer token; a
// missing header is 401 and a wrong key is 403. An empty apiKey
// disables the check, which is the local-development default.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if strings.TrimPrefix(header, "Bearer ") != apiKey {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
