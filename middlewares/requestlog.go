package middlewares

import (
	"time"

	"praxis-billing/logger"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs each request with method, path, status, latency and request id.
// Mount after requestid.New() so the id is available.
func RequestLogger() fiber.Handler {
	log := logger.WithComponent("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// The app ErrorHandler has not run yet; report the status it will send.
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error()
		}
		rid, _ := c.Locals("requestid").(string)
		ev.Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
