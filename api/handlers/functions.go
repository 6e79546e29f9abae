package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/functions"
)

// maxEventBytes bounds the size of an invocation payload.
const maxEventBytes = 1 << 20

// Invoker runs named functions.
type Invoker interface {
	Names() []string
	Invoke(ctx context.Context, name string, payload json.RawMessage) error
}

// FunctionHandler exposes function invocation over HTTP
type FunctionHandler struct {
	registry Invoker
	log      logrus.FieldLogger
}

// NewFunctionHandler creates a new function handler
func NewFunctionHandler(registry Invoker, log logrus.FieldLogger) *FunctionHandler {
	return &FunctionHandler{registry: registry, log: log}
}

// List returns the names of the registered functions
func (h *FunctionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"functions": h.registry.Names()})
}

// Invoke runs a function with the request body as its event. The outcome
// of the run itself is reported in the logs, not the response.
func (h *FunctionHandler) Invoke(c *gin.Context) {
	name := c.Param("name")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON event"})
		return
	}

	if err := h.registry.Invoke(c.Request.Context(), name, body); err != nil {
		if errors.Is(err, functions.ErrUnknownFunction) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.log.WithError(err).WithField("function", name).Error("Failed to invoke function")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invocation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"function": name, "status": "completed"})
}
