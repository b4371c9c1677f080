package middleware

import (
	"net/http"
	"strings"

	"github.com/recruitflow/inbox-server-go/internal/audit"
	"github.com/recruitflow/inbox-server-go/internal/util"
)

type contextKey string

// AuthMiddleware guards an API surface with a static bearer token. The agent
// API and the AI API carry separate tokens so an AI pipeline credential
// cannot reach agent operations.
type AuthMiddleware struct {
	tokenHash string
	surface   string
}

func NewAuthMiddleware(token, surface string) *AuthMiddleware {
	return &AuthMiddleware{tokenHash: util.HashToken(token), surface: surface}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		if !util.ConstantTimeEqual(util.HashToken(token), m.tokenHash) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"surface": m.surface},
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	// SSE clients cannot set headers, so the token may ride the query string.
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
