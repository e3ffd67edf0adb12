package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys for user data
	ContextKeyUserID   = "user_id"
	ContextKeyEmail    = "user_email"
	ContextKeyRole     = "user_role"
	ContextKeyDeviceID = "user_device_id"
	ContextKeyClaims   = "user_claims"
)

// Middleware creates a JWT authentication middleware. The token check is
// signature and expiry only; ban and subscription state are the access
// gateway's concern.
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing authorization header",
			})
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		setUserContext(c, claims)
		c.Next()
	}
}

// OptionalMiddleware allows requests without auth but sets user context if a
// valid token is present
func OptionalMiddleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Next()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err == nil && claims != nil {
			setUserContext(c, claims)
		}

		c.Next()
	}
}

// RequireAdmin middleware ensures the user has the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeyRole)
		if !exists || role.(string) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   ErrForbidden.Code,
				"message": "admin access required",
			})
			return
		}
		c.Next()
	}
}

func setUserContext(c *gin.Context, claims *UserClaims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeyRole, claims.Role)
	c.Set(ContextKeyDeviceID, claims.DeviceID)
	c.Set(ContextKeyClaims, claims)
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(ContextKeyUserID); exists {
		return userID.(string)
	}
	return ""
}

// GetUserClaims extracts the full user claims from the Gin context
func GetUserClaims(c *gin.Context) *UserClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*UserClaims)
	}
	return nil
}

// GetDeviceID extracts the device fingerprint from the Gin context
func GetDeviceID(c *gin.Context) string {
	if deviceID, exists := c.Get(ContextKeyDeviceID); exists {
		return deviceID.(string)
	}
	return ""
}

// IsAdmin checks if the current user has the admin role
func IsAdmin(c *gin.Context) bool {
	if role, exists := c.Get(ContextKeyRole); exists {
		return role.(string) == "admin"
	}
	return false
}
