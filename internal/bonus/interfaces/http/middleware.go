package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
)

const (
	adminSecretHeader = "X-Admin-Secret"
	usernameKey       = "username"
)

// AdminSecretMiddleware 以常量时间比较 X-Admin-Secret
func AdminSecretMiddleware(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(adminSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			writeError(c, domain.Errorf(domain.KindUnauthorized, "", "invalid admin secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// BearerMiddleware 校验访问令牌并把用户名放入上下文
func BearerMiddleware(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(domain.Errorf(domain.KindUnauthorized, "", "missing bearer token")))
			return
		}
		username, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(domain.Errorf(domain.KindUnauthorized, "", "invalid or expired token")))
			return
		}
		c.Set(usernameKey, username)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(usernameKey)
}
