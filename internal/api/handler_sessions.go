package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"labreserve-backend/internal/model"
)

// startSessionRequest is the JSON body for POST /api/sessions. The
// student record is created or refreshed as part of the checkout.
type startSessionRequest struct {
	ComputerID int64  `json:"computerId" binding:"required"`
	StudentID  string `json:"studentId" binding:"required"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	SoftwareID *int64 `json:"softwareId"`
}

// StartSession handles POST /api/sessions.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	student := &model.Student{
		ID:       req.StudentID,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	session, err := h.lifecycle.StartSession(c.Request.Context(), student, req.ComputerID, req.SoftwareID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        session.ID,
		"startedAt": session.StartedAt,
	})
}

// EndSession handles POST /api/sessions/:id/end.
func (h *Handler) EndSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	session, err := h.lifecycle.EndSession(c.Request.Context(), id, time.Now().UTC())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": session.ID, "endedAt": session.EndedAt})
}

// EndSessionForStudent handles POST /api/students/:id/checkout, the
// checkout path when only the student identifier is known. Closes the
// student's most recent open session.
func (h *Handler) EndSessionForStudent(c *gin.Context) {
	session, err := h.lifecycle.EndSessionForStudent(c.Request.Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": session.ID, "endedAt": session.EndedAt})
}
