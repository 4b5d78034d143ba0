package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/dverstak/triage/internal/api/response"
)

// Recovery turns a handler panic into a 500 instead of killing the server.
// Suite analysis runs in its own goroutines with their own recovery, so
// anything caught here is a bug in the HTTP layer itself.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("handler panic",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
