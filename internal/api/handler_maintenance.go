package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// startMaintenanceRequest is the JSON body for POST /api/maintenance.
type startMaintenanceRequest struct {
	ComputerID int64  `json:"computerId" binding:"required"`
	Note       string `json:"note"`
}

// StartMaintenance handles POST /api/maintenance.
func (h *Handler) StartMaintenance(c *gin.Context) {
	var req startMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	hold, err := h.lifecycle.StartMaintenance(c.Request.Context(), req.ComputerID, req.Note)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        hold.ID,
		"startedAt": hold.StartedAt,
	})
}

// EndMaintenance handles POST /api/maintenance/:id/end.
func (h *Handler) EndMaintenance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid hold ID"})
		return
	}

	hold, err := h.lifecycle.EndMaintenance(c.Request.Context(), id, time.Now().UTC())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": hold.ID, "endedAt": hold.EndedAt})
}
