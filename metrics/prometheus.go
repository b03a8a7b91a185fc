package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// all metrics and middlewares for the REST API and the identity workflow
var (
	// to prevent metrics from being initialized multiple times
	isMetricsInitVar uint32 = 0

	// active REST API connections
	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		},
	)

	// response times for REST APIs
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// size of the body for REST APIs
	requestSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_request_size_kilobytes",
			Help:    "REST API response size distributions",
			Buckets: []float64{200, 500, 900, 1500, 2000, 3000, 4000, 5000},
		},
		[]string{"method", "endpoint"},
	)

	responseSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_size_kilobytes",
			Help:    "REST API response size distributions",
			Buckets: []float64{200, 500, 900, 1500, 2000, 3000, 4000, 5000},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint"})

	// Identity resolutions by result (ok, cache, error)
	IdentityResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_resolutions_total",
		Help: "The total number of identity resolutions",
	}, []string{"result"})

	// Rotation keys published
	RotationKeysAddedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_keys_added_total",
		Help: "The total number of rotation keys added and confirmed",
	})

	// Failed rotation attempts by reason (capacity, token, submission, session, storage)
	RotationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotation_failures_total",
		Help: "The total number of failed rotation key additions",
	}, []string{"reason"})

	// Audit logs fetched from the directory
	AuditLogsFetchedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_logs_fetched_total",
		Help: "The total number of audit logs fetched",
	})

	// Audit records whose CID did not match their content
	AuditCIDMismatchMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_cid_mismatch_total",
		Help: "The total number of audit records failing the CID check",
	})

	// Repository backups uploaded
	BackupsCreatedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "repo_backups_created_total",
		Help: "The total number of repository backups uploaded",
	})

	// Latency of a complete add-key flow (sign + submit)
	RotationProcessingLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rotation_processing_latency_milliseconds",
		Help:    "Latency of rotation key additions",
		Buckets: prometheus.LinearBuckets(1, 250, 10),
	})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		// Metrics have to be registered to be exposed
		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
		prometheus.MustRegister(requestSizeRESTAPI)
		prometheus.MustRegister(responseSizeRESTAPI)
		prometheus.MustRegister(IdentityResolutions)
		prometheus.MustRegister(RotationKeysAddedMetricsCount)
		prometheus.MustRegister(RotationFailures)
		prometheus.MustRegister(AuditLogsFetchedMetricsCount)
		prometheus.MustRegister(AuditCIDMismatchMetricsCount)
		prometheus.MustRegister(BackupsCreatedMetricsCount)
		prometheus.MustRegister(RotationProcessingLatency)
	}
}

// RegisterQueueGauges exposes the request queue occupancy
func RegisterQueueGauges(pending func() int, active func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "request_queue_pending",
		Help: "Outbound requests waiting for a queue slot",
	}, func() float64 { return float64(pending()) }))
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "request_queue_active",
		Help: "Outbound requests currently running",
	}, func() float64 { return float64(active()) }))
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Increment the counter for the given endpoint:
		RESTRequestMetricsTotal.WithLabelValues(c.Request.Method, c.FullPath()).Inc()

		r := c.Request
		w := c.Writer

		// Start timing responseTime histogram
		start := time.Now()

		// Set activeConnections gauge
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		c.Next()

		// after request

		// observe request size in kilobtyes
		if r.ContentLength > 0 {
			requestSizeRESTAPI.WithLabelValues(c.Request.Method, c.FullPath()).Observe(float64(r.ContentLength) / 1024)
		}

		// set response size
		if w.Size() > 0 {
			responseSizeRESTAPI.WithLabelValues(c.Request.Method, c.FullPath()).Observe(float64(w.Size()) / 1024)
		}

		// Set responseTime histogram
		latency := time.Since(start)
		responseTimeRESTAPI.WithLabelValues(c.Request.Method, c.FullPath()).Observe(float64(latency.Milliseconds()))
	}
}
