// Package httpx holds the HTTP plumbing shared by the API handlers and the
// server: error rendering and request ids.
package httpx

import (
	"errors"

	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrorHandler converts handler errors to JSON responses. Underlying causes
// are included only when debug is set.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"request_id": RequestID(c),
		}).Errorf("Request error: %v", err)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":      fe.Message,
				"code":       "FIBER_ERROR",
				"status":     fe.Code,
				"request_id": RequestID(c),
			})
		}

		var e *errx.Error
		if errors.As(err, &e) {
			status := e.HTTPStatus
			if status == 0 {
				status = fiber.StatusInternalServerError
			}
			response := fiber.Map{
				"error":      e.Message,
				"code":       e.Code,
				"type":       string(e.Type),
				"status":     status,
				"request_id": RequestID(c),
			}
			if len(e.Details) > 0 {
				response["details"] = e.Details
			}
			if debug && e.Err != nil {
				response["underlying_error"] = e.Err.Error()
			}
			return c.Status(status).JSON(response)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "Internal Server Error",
			"type":       "INTERNAL",
			"code":       "INTERNAL_ERROR",
			"message":    "An unexpected error occurred. Please contact support if the issue persists.",
			"request_id": RequestID(c),
		})
	}
}

// RequestID returns the request id set by the requestid middleware or the
// X-Request-ID header.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

// NewRequestID generates a request id.
func NewRequestID() string {
	return "req-" + uuid.NewString()
}

// NotFound renders unknown routes.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "ROUTE_NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": RequestID(c),
	})
}
