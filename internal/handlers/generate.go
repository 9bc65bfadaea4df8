package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/services"
)

type GenerateHandler struct {
	service *services.GenerationService
}

func NewGenerateHandler(service *services.GenerationService) *GenerateHandler {
	return &GenerateHandler{
		service: service,
	}
}

// Generate godoc
// @Summary     Generate images
// @Description Generates images for a prompt and saves them into a new task directory. Omitted fields fall back to size 2048x2048, count 1, seed -1, scale 0.5 and watermark on.
// @Tags        generate
// @Accept      json
// @Produce     json
// @Param       request body models.GenerateRequest true "Generation parameters"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var body models.GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "invalid request body",
			Error:   err.Error(),
		})
		return
	}

	result, err := h.service.Generate(c.Request.Context(), body.ToGenerationRequest())
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: validationErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Message: "image generation failed",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.GenerateResponse{
		Success:   true,
		Message:   fmt.Sprintf("generated %d of %d images", result.Count, result.Requested),
		Images:    result.Images,
		Count:     result.Count,
		Requested: result.Requested,
		TaskID:    result.TaskID,
		Timestamp: result.Timestamp,
	})
}
