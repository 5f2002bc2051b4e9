package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/daaef/fainzy-cms/logging"
)

const (
	ActorIDKey   = "actorID"
	ActorNameKey = "actorName"
)

// Actor resolves the caller's identity from the gateway-injected headers and
// stores it in the request context for the audit hooks. Requests without the
// headers proceed unauthenticated.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name := c.GetHeader("X-Actor-Name"); name != "" {
			c.Set(ActorNameKey, name)
		}
		if raw := c.GetHeader("X-Actor-Id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				logger.Warn("Ignoring malformed X-Actor-Id header", zap.String("value", raw))
			} else {
				c.Set(ActorIDKey, id)
			}
		}
		c.Next()
	}
}
