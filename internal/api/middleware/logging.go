package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type loggedWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggedWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Logger emits one structured line per request. Run polling produces most of
// the traffic, so the line stays short.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggedWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lw, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}
