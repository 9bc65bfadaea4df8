package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"jimeng-image-generator/internal/web"
)

// IndexHandler serves the generation form.
func IndexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}
