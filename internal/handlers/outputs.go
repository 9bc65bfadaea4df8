package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/services"
)

type OutputsHandler struct {
	service *services.GenerationService
}

func NewOutputsHandler(service *services.GenerationService) *OutputsHandler {
	return &OutputsHandler{
		service: service,
	}
}

// ListOutputs godoc
// @Summary     List generated images
// @Description Lists the most recent task directories that contain images, newest first (at most 50)
// @Tags        outputs
// @Produce     json
// @Success     200 {object} models.OutputListResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /output [get]
func (h *OutputsHandler) ListOutputs(c *gin.Context) {
	tasks, err := h.service.ListOutputs(services.DefaultListLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Message: "failed to list outputs",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.OutputListResponse{
		Success:    true,
		TotalTasks: len(tasks),
		Tasks:      tasks,
	})
}

// GetOutputFile godoc
// @Summary     Get a generated image
// @Description Serves one image from a task directory
// @Tags        outputs
// @Produce     image/jpeg
// @Param       dir  path string true "Task directory"
// @Param       file path string true "Image file name"
// @Success     200 {file} file
// @Failure     404 {object} models.ErrorResponse
// @Router      /output/{dir}/{file} [get]
func (h *OutputsHandler) GetOutputFile(c *gin.Context) {
	path, err := h.service.ResolveOutput(c.Param("dir"), c.Param("file"))
	if err != nil {
		log.FromContextOrDiscard(c.Request.Context()).Debug("output not found", "error", err)
		c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "file not found"})
		return
	}
	c.File(path)
}
