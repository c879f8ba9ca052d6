package middleware

import (
	"net/http"
	"time"
)

type logger interface {
	Info(msg string, args ...any)
}

// Status and size of the written response
type logData struct {
	responseStatus int
	responseSize   int
}

type logWriter struct {
	http.ResponseWriter
	data logData
}

func (w *logWriter) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.data.responseSize += size
	return size, err
}

func (w *logWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.data.responseStatus = statusCode
}

// Log every request with the route that served it and the client address
// Route is the ServeMux pattern, so it has to wrap the mux (directly or through other middlewares)
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK},
			}

			next.ServeHTTP(lw, r)

			l.Info(
				"HTTP request served",
				"method", r.Method,
				"uri", r.RequestURI,
				"route", routePattern(r),
				"ip", ClientIP(r),
				"status", lw.data.responseStatus,
				"size", lw.data.responseSize,
				"duration", time.Since(start),
			)
		})
	}
}
