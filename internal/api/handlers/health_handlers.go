package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandlers serves liveness endpoints
type HealthHandlers struct{}

// NewHealthHandlers creates health handlers
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{}
}

// Health reports service liveness
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
