package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger пишет строку лога на каждый запрос. Приватные ошибки попадают только сюда.
func Logger(l *logrus.Logger) gin.HandlerFunc {
	entry := l.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		}
		if userID, ok := c.Get(CurrentUserIDKey); ok {
			fields["userID"] = userID
		}

		e := entry.WithFields(fields)
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			e.WithField("errors", errs.String()).Error("request failed")
			return
		}
		e.Info("request")
	}
}
