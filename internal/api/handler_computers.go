package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"labreserve-backend/internal/model"
	"labreserve-backend/internal/parse"
)

// computerStatusResponse is the flattened structure for computer status
// responses.
type computerStatusResponse struct {
	ID          int64               `json:"id"`
	LabID       int64               `json:"labId"`
	Number      int                 `json:"number"`
	Label       string              `json:"label"`
	State       model.ComputerState `json:"state"`
	StateReason string              `json:"stateReason,omitempty"`
	IsAvailable bool                `json:"isAvailable"`
}

func toStatusResponse(c model.Computer, labName string) computerStatusResponse {
	return computerStatusResponse{
		ID:          c.ID,
		LabID:       c.LabID,
		Number:      c.Number,
		Label:       parse.FormatLabel(labName, c.Number),
		State:       c.State,
		StateReason: c.StateReason,
		IsAvailable: c.State == model.StateAvailable,
	}
}

// GetLabComputers handles GET /api/labs/:lab_id/computers.
func (h *Handler) GetLabComputers(c *gin.Context) {
	labID, err := strconv.ParseInt(c.Param("lab_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid lab ID"})
		return
	}

	lab, err := h.store.GetLab(c.Request.Context(), labID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	computers, err := h.store.ListComputers(c.Request.Context(), labID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]computerStatusResponse, 0, len(computers))
	for _, comp := range computers {
		response = append(response, toStatusResponse(comp, lab.Name))
	}
	c.JSON(http.StatusOK, response)
}

// GetAvailableComputers handles GET /api/labs/:lab_id/available.
func (h *Handler) GetAvailableComputers(c *gin.Context) {
	labID, err := strconv.ParseInt(c.Param("lab_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid lab ID"})
		return
	}

	lab, err := h.store.GetLab(c.Request.Context(), labID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	computers, err := h.store.ListAvailableComputers(c.Request.Context(), labID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]computerStatusResponse, 0, len(computers))
	for _, comp := range computers {
		response = append(response, toStatusResponse(comp, lab.Name))
	}
	c.JSON(http.StatusOK, response)
}

// GetComputerAvailability handles GET /api/computers/:id/availability.
// Read-only: it reports the stored authoritative state and its reason,
// it never recomputes or mutates.
func (h *Handler) GetComputerAvailability(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid computer ID"})
		return
	}

	comp, err := h.store.GetComputer(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":  comp.State,
		"reason": comp.StateReason,
	})
}
