package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Logger is a middleware that writes one structured log line per HTTP request with
// request_id, method, path, status and latency in milliseconds.
// Server errors are logged at error level, client errors at warn.
func Logger(log zerolog.Logger) fiber.Handler {
	log = log.With().Str("component", "http").Logger()

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// A returned error is answered by the app's ErrorHandler after this middleware runs.
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = log.Error()
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		ev.Str("request_id", RequestIDFromCtx(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Send()

		return err
	}
}
