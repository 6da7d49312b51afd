package middleware

import (
	"strconv"
	"time"

	"crm-backend/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Metrics records request count and latency per route template, so
// /deals/:id is one series no matter how many deals exist.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := "unmatched"
		// middleware routes also report "/", so only the root path itself keeps it
		if r := c.Route(); r != nil && r.Path != "" && (r.Path != "/" || c.Path() == "/") {
			route = r.Path
		}
		observability.RecordHTTPRequest(c.Method(), route, strconv.Itoa(status), time.Since(start).Seconds())
		return err
	}
}
