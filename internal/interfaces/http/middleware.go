package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/river-voucher/internal/application/service"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/pkg/utils"
)

const (
	requestIDKey    = "request_id"
	actorKey        = "actor"
	requestIDHeader = "X-Request-ID"
)

// requestIDMiddleware propagates X-Request-ID, generating one when absent,
// so backend calls made for this request carry the same id.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(utils.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// authMiddleware turns the bearer token into an entity.Actor.
// Printable stubs opened from a browser may pass the token as ?token=.
func authMiddleware(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && c.Request.Method == http.MethodGet {
			token = c.Query("token")
		}
		if token == "" {
			abortWithError(c, entity.ErrUnauthenticated)
			return
		}

		actor, err := sessions.Authenticate(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireRole gates a route to the given roles
func requireRole(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentActor(c).Is(roles...) {
			abortWithError(c, entity.ErrForbidden)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func currentActor(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}
