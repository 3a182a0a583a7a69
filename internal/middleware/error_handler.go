package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"statutelink/internal/models"
	"statutelink/pkg/errs"
)

// CorrelationID stamps a request-scoped id used in every log line and
// response for this request. An inbound X-Request-ID is honoured.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("correlation_id", id)
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}

// RequestID extracts the correlation id from the context.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	if id := c.Locals(requestid.ConfigDefault.ContextKey); id != nil {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// ErrorHandler is the Fiber error handler. Fiber errors keep their own status.
// Core errors map by kind: bad requests to 400, not-found errors to 404,
// timeouts to 504, and every other kind to 500 as an internal fault.
func ErrorHandler(c *fiber.Ctx, err error) error {
	requestID := RequestID(c)
	log.Printf("[ERROR] [%s] %s %s - %v", requestID, c.Method(), c.Path(), err)

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(
			models.NewErrorResponse(codeFromStatus(fiberErr.Code), fiberErr.Message, requestID))
	}

	switch errs.KindOf(err) {
	case errs.KindBadRequest:
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("bad_request", err.Error(), requestID))
	case errs.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("not_found", err.Error(), requestID))
	case errs.KindTimeout:
		return c.Status(fiber.StatusGatewayTimeout).JSON(
			models.NewErrorResponse("timeout", "request deadline exceeded", requestID))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("internal_server_error", "an internal error occurred", requestID))
	}
}

func codeFromStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusUnprocessableEntity:
		return "validation_error"
	case fiber.StatusRequestTimeout:
		return "request_timeout"
	case fiber.StatusTooManyRequests:
		return "too_many_requests"
	case fiber.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_server_error"
	}
}
