package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/hugg-chat/internal/common"
)

const (
	RequestIDKey        = "request_id"
	CorrelationIDKey    = "correlation_id"
	RequestIDHeader     = "X-Request-ID"
	CorrelationIDHeader = "X-Correlation-ID"
)

// RequestID reuses the caller's X-Request-ID or mints one, and echoes both
// request and correlation ids back. The correlation id defaults to the
// request id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = common.NewUUID()
		}
		cid := c.GetHeader(CorrelationIDHeader)
		if cid == "" || len(cid) > 128 {
			cid = rid
		}
		c.Set(RequestIDKey, rid)
		c.Set(CorrelationIDKey, cid)
		c.Header(RequestIDHeader, rid)
		c.Header(CorrelationIDHeader, cid)
		c.Next()
	}
}
