package httpgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func etagRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/thing", func(c *gin.Context) {
		writeJSONWithCache(c, http.StatusOK, gin.H{"v": 1}, "public, max-age=15", true)
	})
	return r
}

func TestWriteJSONWithCache(t *testing.T) {
	r := etagRouter()

	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)
	assert.Equal(t, "public, max-age=15", w.Header().Get("Cache-Control"))

	// a matching If-None-Match gets 304 with no body
	req = httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set("If-None-Match", tag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	// the tag also matches inside an If-None-Match list
	req = httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set("If-None-Match", `W/"stale", `+tag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)

	// a stale tag gets the full response again
	req = httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set("If-None-Match", `W/"stale"`)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}
