package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/api/identity/:did", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"did": c.Param("did")})
	})

	before := testutil.ToFloat64(RESTRequestMetricsTotal.WithLabelValues(http.MethodGet, "/api/identity/:did"))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/identity/did:plc:abc", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	after := testutil.ToFloat64(RESTRequestMetricsTotal.WithLabelValues(http.MethodGet, "/api/identity/:did"))
	assert.Equal(t, before+3, after)
	assert.Equal(t, float64(0), testutil.ToFloat64(activeRESTConnections))
}

func TestInitMetricsOnlyOnce(t *testing.T) {
	assert.NotPanics(t, func() {
		InitMetrics()
		InitMetrics()
	})
	assert.True(t, isMetricsInit())
}
