package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Pipeline(t *testing.T) {
	c := NewCollector()
	c.RecordPipeline("storefront", 2*time.Millisecond, 8, nil)
	c.RecordPipeline("storefront", time.Millisecond, 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.pipelineRuns.WithLabelValues("storefront", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pipelineRuns.WithLabelValues("storefront", "error")))
}

func TestCollector_CatalogReload(t *testing.T) {
	c := NewCollector()
	c.RecordCatalogReload(42, nil)
	c.RecordCatalogReload(0, errors.New("db down"))

	assert.Equal(t, 42.0, testutil.ToFloat64(c.catalogProducts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.catalogReloads.WithLabelValues("error")))
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCollector()

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/products/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/products/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "recommend_http_requests_total")
}
