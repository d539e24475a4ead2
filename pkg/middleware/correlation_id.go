package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/parking-drivetime/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CorrelationIDHeader is the header name for correlation ID
	CorrelationIDHeader = "X-Request-ID"
	// legacyCorrelationIDHeader is still sent by older clients
	legacyCorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the gin context key for correlation ID
	CorrelationIDKey = "correlation_id"
)

var correlationIDAttr = attribute.Key("request.correlation_id")

// CorrelationID reuses a valid UUID from the request or generates one. The id is
// stored on the gin and request contexts, echoed in the response and attached
// to the active span.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := inboundCorrelationID(c)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)
		ctx := logger.ContextWithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(CorrelationIDHeader, correlationID)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(correlationIDAttr.String(correlationID))
		}

		c.Next()
	}
}

// inboundCorrelationID returns the first header value that parses as a UUID
func inboundCorrelationID(c *gin.Context) string {
	for _, header := range []string{CorrelationIDHeader, legacyCorrelationIDHeader} {
		id := strings.TrimSpace(c.GetHeader(header))
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return ""
}

// GetCorrelationID extracts correlation ID from gin context
func GetCorrelationID(c *gin.Context) string {
	if id, exists := c.Get(CorrelationIDKey); exists {
		if correlationID, ok := id.(string); ok {
			return correlationID
		}
	}
	return logger.CorrelationIDFromContext(c.Request.Context())
}
