package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"jimeng-image-generator/internal/models"
)

// HealthHandler godoc
// @Summary     Health check
// @Description Returns the health status of the server
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func HealthHandler(c *gin.Context) {
	response := models.HealthResponse{
		Status: "ok",
	}
	c.JSON(http.StatusOK, response)
}
