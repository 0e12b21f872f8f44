package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/infrastructure"
	"reportingtool.io/reporting/internal/pkg/logger"
)

const ctxKeySession = "db_session"

// SessionAcquirer hands out request-scoped database sessions.
type SessionAcquirer interface {
	Acquire(ctx context.Context) (*infrastructure.Session, error)
}

// DBSession opens one database session per request and releases it after
// the rest of the chain returns, including on panic or client disconnect.
func DBSession(provider SessionAcquirer) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := provider.Acquire(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		defer func() {
			if err := sess.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
				logger.Warn("Release database session",
					zap.String("request_id", GetRequestID(c.Request.Context())),
					zap.Error(err),
				)
			}
		}()

		c.Set(ctxKeySession, sess)
		c.Next()
	}
}

// SessionFrom returns the session attached by DBSession.
func SessionFrom(c *gin.Context) (*infrastructure.Session, bool) {
	v, ok := c.Get(ctxKeySession)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*infrastructure.Session)
	return sess, ok
}
