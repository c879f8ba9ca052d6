package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type observed struct {
	method string
	path   string
	status int
}

type observerFunc func(method string, path string, status int, duration time.Duration)

func (f observerFunc) ObserveRequest(method string, path string, status int, duration time.Duration) {
	f(method, path, status, duration)
}

func TestMetricsMiddleware(t *testing.T) {
	var got []observed
	observer := observerFunc(func(method string, path string, status int, _ time.Duration) {
		got = append(got, observed{method, path, status})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	h := MetricsMiddleware(observer)(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/unknown/path", nil))

	require.Equal(t, []observed{
		{http.MethodGet, "GET /items/{id}", http.StatusAccepted},
		{http.MethodGet, unmatchedPath, http.StatusNotFound},
	}, got)
}
