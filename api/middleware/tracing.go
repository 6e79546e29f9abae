package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Tracing returns the New Relic handlers for the router, or none when the
// agent is disabled. Invocations are tagged with the function they target.
func Tracing(app *newrelic.Application) []gin.HandlerFunc {
	if app == nil {
		return nil
	}
	return []gin.HandlerFunc{nrgin.Middleware(app), tagFunction}
}

func tagFunction(c *gin.Context) {
	if txn := nrgin.Transaction(c); txn != nil {
		if name := c.Param("name"); name != "" {
			txn.AddAttribute("function", name)
		}
	}
	c.Next()
}
