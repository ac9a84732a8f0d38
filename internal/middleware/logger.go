package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/handler"
)

// Logger writes one line per request. Bodies are never logged; they carry
// passwords and clinical notes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		l := zerolog.Ctx(c.Request.Context())
		if l.GetLevel() == zerolog.Disabled {
			l = &log.Logger
		}

		var evt *zerolog.Event
		switch {
		case status >= 500:
			evt = l.Error()
		case status >= 400:
			evt = l.Warn()
		default:
			evt = l.Info()
		}

		evt = evt.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Request.UserAgent())

		if p := handler.Principal(c); p != nil {
			evt = evt.Str("role", string(p.Role)).Str("subject_id", p.SubjectID.String())
		}

		switch {
		case status >= 500:
			evt.Msg("Server error")
		case status >= 400:
			evt.Msg("Client error")
		default:
			evt.Msg("Request processed")
		}
	}
}
