package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/jamfops/internal/metrics"
)

// StatusHandler serves health and metrics snapshots.
type StatusHandler struct {
	metrics *metrics.Collector
}

// NewStatusHandler creates a status handler over collector
func NewStatusHandler(collector *metrics.Collector) *StatusHandler {
	return &StatusHandler{metrics: collector}
}

// Health handles health check requests
func (h *StatusHandler) Health(c *gin.Context) {
	health := h.metrics.GetHealthStatus()

	statusCode := http.StatusOK
	if status, ok := health["status"].(map[string]interface{}); ok {
		if healthy, ok := status["healthy"].(bool); ok && !healthy {
			statusCode = http.StatusServiceUnavailable
		}
	}
	health["service"] = "jamfops"

	c.JSON(statusCode, health)
}

// Metrics handles requests to get metrics
func (h *StatusHandler) Metrics(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	h.metrics.SetGauge(metrics.GaugeSystemMemory, float64(memStats.Alloc))

	data := h.metrics.GetMetrics()
	data["runtime"] = gin.H{
		"goroutines": runtime.NumGoroutine(),
		"memory": gin.H{
			"alloc_bytes":       memStats.Alloc,
			"total_alloc_bytes": memStats.TotalAlloc,
			"sys_bytes":         memStats.Sys,
			"heap_objects":      memStats.HeapObjects,
			"gc_cycles":         memStats.NumGC,
		},
	}

	c.JSON(http.StatusOK, data)
}
