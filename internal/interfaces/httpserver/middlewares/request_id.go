package middlewares

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"houzel-server/internal/utils/httpclients"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an X-Request-Id, echoing an inbound id
// when the caller already set one. The id is written to the response header
// and stored on the request context under the same key the outbound HTTP
// clients read when logging, so it follows the request across hops.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), httpclients.RequestID{}, id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or "" outside it.
func RequestIDFromContext(c *gin.Context) string {
	id, _ := c.Request.Context().Value(httpclients.RequestID{}).(string)
	return id
}
