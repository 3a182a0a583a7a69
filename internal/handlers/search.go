package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"statutelink/internal/middleware"
	"statutelink/internal/models"
	"statutelink/pkg/retriever"
)

// SearchHandler serves the internal retrieval API.
type SearchHandler struct {
	retriever RetrieverService
}

// SearchDocuments handles POST /api/v1/search.
func (h *SearchHandler) SearchDocuments(c *fiber.Ctx) error {
	requestID := middleware.RequestID(c)

	var req models.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("bad_request", "invalid JSON body", requestID))
	}

	if err := models.ValidateStruct(&req); err != nil {
		resp := models.NewErrorResponse("validation_error", "request validation failed", requestID)
		resp.Error.Details = map[string]interface{}{"fields": models.FormatValidationErrors(err)}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	opts := retriever.Options{
		UseInterpretationLinks:    req.UseLinks(),
		MaxInterpretivePerStatute: req.MaxInterpretivePerStatute,
	}

	resp, err := h.retriever.Retrieve(c.UserContext(), req.Query, req.TopK, opts)
	if err != nil {
		// The retriever degrades internally; an error here means the request
		// itself was unusable.
		return err
	}

	log.Printf("[SEARCH] [%s] query=%q k=%d results=%d partial=%t",
		requestID, req.Query, req.TopK, len(resp.Results), resp.Partial)

	return c.JSON(models.NewSuccessResponse(resp, requestID))
}
