package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dverstak/triage/internal/api/response"
	"github.com/dverstak/triage/internal/store"
)

// keyPrefixLen is the number of leading raw-key characters stored in plain
// text for lookup. The rest is only ever compared against the bcrypt hash.
const keyPrefixLen = 8

// Auth authenticates Bearer API keys against the store.
type Auth struct {
	store store.Store
}

func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate resolves the Bearer token to a stored API key. Keys sharing a
// prefix are disambiguated by bcrypt comparison against the full raw key. On
// success the key prefix and scopes are placed in the request context for the
// rate limiter and scope checks downstream.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}
		if len(raw) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		prefix := raw[:keyPrefixLen]
		candidates, err := a.store.GetAPIKeyByPrefix(r.Context(), prefix)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		for _, key := range candidates {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) != nil {
				continue
			}

			ctx := setKeyPrefix(r.Context(), prefix)
			ctx = setScopes(ctx, key.Scopes)

			// Recording last_used_at must not add latency to the request.
			go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		response.Error(w, http.StatusUnauthorized,
			"INVALID_TOKEN", "Invalid API key", nil)
	})
}

// RequireScope gates a route on the authenticated key carrying the scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, s := range getScopes(r) {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
