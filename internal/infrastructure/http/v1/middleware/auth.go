package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"tsdstock/internal/core/apperror"
	appctx "tsdstock/internal/core/context"
)

// HeaderDeviceID names the TSD that sends a request. It only fills in a
// device when the token was issued without one.
const HeaderDeviceID = "X-Device-ID"

// ginKeyUserID carries the acting user to the request logger.
const ginKeyUserID = "user_id"

// TokenValidator resolves a bearer token to the acting user.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth rejects requests without a valid bearer token and attaches the acting
// user and device to the request context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed bearer token")
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil || user == nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		if user.DeviceID == "" {
			user.DeviceID = strings.TrimSpace(c.GetHeader(HeaderDeviceID))
		}

		c.Set(ginKeyUserID, user.UserID)
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
