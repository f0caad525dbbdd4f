package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/events/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/events/:id", "200"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/123", nil))
	require.Equal(t, http.StatusOK, w.Code)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/events/:id", "200"))
	assert.Equal(t, before+1, after)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	RegistrationsTotal.WithLabelValues("registered").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `events_registrations_total{outcome="registered"}`))
}

func TestDBCollectorNilPool(t *testing.T) {
	c := NewDBCollector(nil)
	assert.NotPanics(t, c.collect)
}
