package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats returns a read-only snapshot of the hub counters.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Stats())
}

// Health is the root liveness route.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "AnonPair API"})
}
