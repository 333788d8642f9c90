package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aipolish/internal/infra/observability"
)

// Route labels for requests that matched no API route.
const (
	RouteSPA       = "spa"
	RouteUnmatched = "unmatched"
)

// Metrics records every request on m. Routes are labelled by their gin
// pattern so path parameters do not explode label cardinality. A handler
// panic is recorded as a 500 and passed on to the recovery middleware.
func Metrics(m *observability.HTTPMetrics, isAPIPath func(string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.Begin()
		defer func() {
			status := c.Writer.Status()
			recovered := recover()
			if recovered != nil {
				status = http.StatusInternalServerError
			}
			done(c.Request.Method, routeLabel(c, isAPIPath), status)
			if recovered != nil {
				panic(recovered)
			}
		}()
		c.Next()
	}
}

func routeLabel(c *gin.Context, isAPIPath func(string) bool) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	if isAPIPath != nil && isAPIPath(c.Request.URL.Path) {
		return RouteUnmatched
	}
	return RouteSPA
}
