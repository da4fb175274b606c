package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/common"
)

const UserIDKey = "user_id"

type Authenticator interface {
	Authenticate(token string) (string, error)
}

// AuthRequired resolves the bearer token to a user id and stores it under
// UserIDKey.
func AuthRequired(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			common.Fail(c, http.StatusUnauthorized, 40101, apperr.KindUnauthenticated.Code(), "missing bearer token")
			return
		}
		uid, err := a.Authenticate(token)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, apperr.KindUnauthenticated.Code(), "invalid token")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// UserID returns the authenticated caller set by AuthRequired.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
