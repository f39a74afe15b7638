package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/identity"
	"gorm.io/gorm"
)

const actorKey = "actor"

// authenticate resolves the bearer token into an actor and records the
// actor in the users table so its display name is known.
func authenticate(provider identity.Provider, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			renderError(c, apperr.Unauthenticated("server.auth"))
			return
		}
		actor, err := provider.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			e := apperr.Unauthenticated("server.auth")
			e.Message = "invalid bearer token"
			renderError(c, e)
			return
		}
		if err := identity.Remember(c.Request.Context(), db, actor); err != nil {
			logrus.WithFields(logrus.Fields{"user_id": actor.ID, "error": err}).Warn("server: remember actor failed")
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func actorFrom(c *gin.Context) *identity.Actor {
	return identity.FromContext(c.Request.Context())
}
