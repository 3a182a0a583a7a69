package handlers

import (
	"github.com/gofiber/fiber/v2"

	"statutelink/internal/middleware"
	"statutelink/internal/models"
	"statutelink/pkg/validation"
)

// ValidateHandler serves the internal validation API.
type ValidateHandler struct {
	pipeline ValidatorService
}

// ValidateAnswer handles POST /api/v1/validate.
func (h *ValidateHandler) ValidateAnswer(c *fiber.Ctx) error {
	requestID := middleware.RequestID(c)

	var req models.ValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("bad_request", "invalid JSON body", requestID))
	}

	if err := models.ValidateStruct(&req); err != nil {
		resp := models.NewErrorResponse("validation_error", "request validation failed", requestID)
		resp.Error.Details = map[string]interface{}{"fields": models.FormatValidationErrors(err)}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	ctx := validation.WithCorrelationID(c.UserContext(), requestID)
	result := h.pipeline.Validate(ctx, req.Answer, req.Query, req.ToContextDocs())

	return c.JSON(models.NewSuccessResponse(result, requestID))
}
