package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"labreserve-backend/internal/store"
)

// GetStudent handles GET /api/students/:id, the pre-checkout lookup that
// prefills the student's contact details.
func (h *Handler) GetStudent(c *gin.Context) {
	student, err := h.store.GetStudent(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrStudentNotFound) {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"found":    true,
		"fullName": student.FullName,
		"email":    student.Email,
		"phone":    student.Phone,
	})
}
