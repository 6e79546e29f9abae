package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/api/handlers"
	"example.com/backstage/services/jamfops/internal/metrics"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, registry handlers.Invoker, collector *metrics.Collector, log logrus.FieldLogger) {
	status := handlers.NewStatusHandler(collector)
	r.GET("/healthz", status.Health)
	r.GET("/metrics", status.Metrics)

	api := r.Group("/api/v1")

	functionHandler := handlers.NewFunctionHandler(registry, log)
	fns := api.Group("/functions")
	{
		fns.GET("", functionHandler.List)
		fns.POST("/:name", functionHandler.Invoke)
	}
}
