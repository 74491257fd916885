package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_ExactRoutes(t *testing.T) {
	r := New()
	r.GET("/api/v1/jobs", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("jobs"))
	})
	r.POST("/api/v1/upload", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	w := serve(r, http.MethodGet, "/api/v1/jobs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jobs", w.Body.String())

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/v1/upload").Code)
}

func TestRouter_WildcardRoutes(t *testing.T) {
	r := New()
	r.GET("/api/v1/status/*", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(req.URL.Path))
	})

	w := serve(r, http.MethodGet, "/api/v1/status/city-parks")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/status/city-parks", w.Body.String())

	// The wildcard needs at least one trailing segment.
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/status").Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r := New()
	r.GET("/api/v1/jobs", func(w http.ResponseWriter, req *http.Request) {})

	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPost, "/api/v1/jobs").Code)
}

func TestRouter_NotFound(t *testing.T) {
	r := New()
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/nope").Code)
}

func TestRouter_Mount(t *testing.T) {
	r := New()
	r.Mount("/docs/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("docs"))
	}))

	w := serve(r, http.MethodGet, "/docs/index.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "docs", w.Body.String())
}

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/api/v1/status/d1", "/api/v1/status/*", true},
		{"/api/v1/status/a/b", "/api/v1/status/*", true},
		{"/api/v1/status/", "/api/v1/status/*", false},
		{"/api/v1/status", "/api/v1/status/*", false},
		{"/other/d1", "/api/v1/status/*", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchWildcard(tt.path, tt.pattern), "%s vs %s", tt.path, tt.pattern)
	}
}
