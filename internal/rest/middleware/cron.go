package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/config"
	ierr "github.com/laia-connect/billing/internal/errors"
)

// CronAuthMiddleware guards the scheduler endpoints. Only the platform's
// own cron runner knows the shared secret.
func CronAuthMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Cron-Secret")
		if cfg.Secrets.CronSecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.Secrets.CronSecret)) != 1 {
			c.Error(ierr.NewError("invalid cron secret").
				WithHint("Unauthorized").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}
