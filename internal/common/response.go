package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

// Fail writes the error envelope. errCode is the stable machine-readable name
// of the failure; code is the numeric code kept for older clients.
func Fail(c *gin.Context, httpStatus int, code int, errCode string, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"error":   errCode,
		"message": msg,
		"data":    nil,
	})
}
