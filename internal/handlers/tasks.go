package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/services"
)

type TasksHandler struct {
	service *services.GenerationService
}

func NewTasksHandler(service *services.GenerationService) *TasksHandler {
	return &TasksHandler{
		service: service,
	}
}

// ListTasks godoc
// @Summary     List task history
// @Description Lists recorded generation tasks, newest first. Requires DATABASE_URL.
// @Tags        tasks
// @Produce     json
// @Param       limit query int false "Maximum number of tasks (1-50)"
// @Success     200 {object} models.TaskHistoryResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /tasks [get]
func (h *TasksHandler) ListTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		message := lo.Ternary(errors.Is(err, services.ErrHistoryDisabled), "database not available", "failed to list tasks")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Message: message,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.TaskHistoryResponse{
		Success: true,
		Tasks:   lo.Map(records, func(r models.TaskRecord, _ int) models.TaskRecordResponse { return toTaskRecordResponse(r) }),
	})
}

// GetTask godoc
// @Summary     Get a recorded task
// @Description Returns one generation task from the history. Requires DATABASE_URL.
// @Tags        tasks
// @Produce     json
// @Param       id path string true "Task ID"
// @Success     200 {object} models.TaskRecordResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /tasks/{id} [get]
func (h *TasksHandler) GetTask(c *gin.Context) {
	record, err := h.service.Task(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "task not found"})
		return
	case errors.Is(err, services.ErrHistoryDisabled):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "database not available", Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "failed to get task", Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toTaskRecordResponse(*record))
}

func toTaskRecordResponse(r models.TaskRecord) models.TaskRecordResponse {
	return models.TaskRecordResponse{
		TaskID:       r.ID,
		TaskDir:      r.TaskDir,
		Prompt:       r.Prompt,
		Size:         r.Size,
		Count:        r.Count,
		Seed:         r.Seed,
		Scale:        r.Scale,
		Watermark:    r.Watermark,
		Status:       r.Status,
		ImageCount:   r.ImageCount,
		ErrorMessage: r.ErrorMessage.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
