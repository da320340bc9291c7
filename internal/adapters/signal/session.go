package signal

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClientTokenKey names the per-browser token in the cookie session and gin context.
// It only correlates reconnects in logs; it is not an identity.
const ClientTokenKey = "client_token"

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(ClientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(ClientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("save client token")
			}
		}
		c.Set(ClientTokenKey, token)
		c.Next()
	}
}
