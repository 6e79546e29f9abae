package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/api/handlers"
	"example.com/backstage/services/jamfops/api/middleware"
	"example.com/backstage/services/jamfops/api/routes"
	"example.com/backstage/services/jamfops/config"
	"example.com/backstage/services/jamfops/internal/metrics"
)

// Server represents the HTTP server
type Server struct {
	router     *gin.Engine
	config     *config.Config
	httpServer *http.Server
	log        logrus.FieldLogger
}

// NewServer creates a new HTTP server
func NewServer(
	config *config.Config,
	log logrus.FieldLogger,
	nrApp *newrelic.Application,
	registry handlers.Invoker,
	collector *metrics.Collector,
) *Server {
	gin.SetMode(config.Server.Mode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.Tracing(nrApp)...)

	routes.SetupRoutes(router, registry, collector, log)

	return &Server{
		router: router,
		config: config,
		log:    log,
		httpServer: &http.Server{
			Addr:    config.Server.Address,
			Handler: router,
		},
	}
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Infof("Starting server on %s", s.config.Server.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
