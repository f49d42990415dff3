package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	"animelist_service/internal/auth"
)

const (
	ctxUserID    = "UserID"
	ctxRequestID = "RequestID"

	requestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware echoes the correlation id set by the edge proxy, or
// generates one when the request arrives without it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			id, err := uuid.NewV4()
			if err == nil {
				requestID = id.String()
			}
		}

		c.Set(ctxRequestID, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()
	}
}

// AuthMiddleware validates the bearer access token and attaches the
// resolved user id to the request context. It never consults the session
// registry: access tokens are self-contained, revocation takes effect at
// the next refresh.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "empty authorization header")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		claims, err := issuer.Verify(parts[1], auth.TokenTypeAccess)
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token")

			return
		}

		c.Set(ctxUserID, claims.UserID)

		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}

	return id, true
}

func requestIDFromContext(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
