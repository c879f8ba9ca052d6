package middleware

import (
	"net/http"
	"time"
)

type requestObserver interface {
	ObserveRequest(method string, path string, status int, duration time.Duration)
}

// Label for requests no route matched, keeps metrics cardinality bounded
const unmatchedPath = "unmatched"

// MetricsMiddleware has to wrap ServeMux directly:
// the mux sets Pattern on the request it was given, that is used as path label
func MetricsMiddleware(m requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK},
			}

			next.ServeHTTP(lw, r)

			m.ObserveRequest(r.Method, routePattern(r), lw.data.responseStatus, time.Since(start))
		})
	}
}

// Pattern of the route that served the request, known only after ServeMux handled it
func routePattern(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedPath
	}
	return r.Pattern
}
