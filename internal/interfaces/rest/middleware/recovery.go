package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/interfaces/rest"
)

// Recovery turns a panic anywhere below it into a 500 error envelope. It
// must be the outermost middleware. The relay request id is read from the
// response header set by RequestID, so it is logged even when the panic
// happened before the handler saw the request context.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				logger.Error("panic recovered",
					"panic", p,
					"request_id", w.Header().Get(RequestIDHeader),
					"method", r.Method,
					"path", r.URL.Path,
					"remote", remoteHost(r),
					"response_started", rec.wrote,
					"stack", string(debug.Stack()),
				)

				// a partly written response cannot carry the envelope
				if rec.wrote {
					return
				}
				rest.WriteError(w, application.NewInternalError(fmt.Errorf("panic: %v", p)), logger)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
