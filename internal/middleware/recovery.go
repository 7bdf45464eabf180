package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// quietPaths are polled often enough that logging them at info is noise.
var quietPaths = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Recovery turns handler panics into 500 responses and logs every request.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				if p := recover(); p != nil {
					logger.Error("panic recovered",
						zap.Any("panic", p),
						zap.String("path", r.URL.Path),
						zap.String("stack", string(debug.Stack())),
					)
					http.Error(rec, "internal server error", http.StatusInternalServerError)
				}

				log := logger.Info
				if quietPaths[r.URL.Path] {
					log = logger.Debug
				}
				log("handled request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", rec.status),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
