package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/common"
	"github.com/suPer8Hu/hugg-chat/internal/ratelimit"
)

// RateLimit must run after AuthRequired. A limiter error lets the request
// through.
func RateLimit(l ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		uid, _ := UserID(c)
		ok, err := l.Allow(c.Request.Context(), uid)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			common.Fail(c, http.StatusTooManyRequests, 42901, apperr.KindRateLimited.Code(), "too many prompts, slow down")
			return
		}
		c.Next()
	}
}
