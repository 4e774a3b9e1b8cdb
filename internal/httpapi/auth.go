package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the expected shape of an access token minted by whatever
// issues credentials for this deployment; the engine itself never mints
// tokens, only verifies them.
type Claims struct {
	Trader string `json:"trader"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates a bearer JWT signed with HMAC-SHA256 against
// secret, grounded on internal/hft/middleware/auth.go's
// HFTAuthMiddlewareWithConfig: same header-prefix check, same signing
// method guard, same context keys set for handlers downstream.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 7 || header[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("trader", claims.Trader)
		c.Next()
	}
}
