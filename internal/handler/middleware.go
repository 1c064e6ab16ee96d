package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller as asserted by the upstream auth gateway.
// Authentication itself is outside this service; the gateway forwards the
// verified user in these headers.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Staff  bool
}

const identityKey = "identity"

// RequireUser rejects requests without a forwarded identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
			return
		}
		c.Set(identityKey, Identity{
			UserID: userID,
			Email:  c.GetHeader("X-User-Email"),
			Staff:  c.GetHeader("X-User-Staff") == "true",
		})
		c.Next()
	}
}

// RequireStaff guards admin-only endpoints; run after RequireUser.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).Staff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff access required"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) Identity {
	id, _ := c.Get(identityKey)
	ident, _ := id.(Identity)
	return ident
}
