package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mruwnik/notes-critic-sub001/internal/httputil"
)

// Recovery converts handler panics into problem responses with a
// logged stack trace. For SSE requests whose headers already went out
// the write is a no-op and the client sees the stream drop instead.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)

					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
