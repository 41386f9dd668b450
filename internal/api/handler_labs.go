package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"labreserve-backend/internal/model"
)

// LabResponse represents the API response for a single lab.
type LabResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	TotalComputers int64  `json:"totalComputers"`
	Available      int64  `json:"available"`
}

// GetLabs handles the GET /api/labs request.
func GetLabs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var labs []model.Lab
		if err := db.Order("name").Find(&labs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve labs"})
			return
		}

		type AggRow struct {
			LabID          int64
			TotalComputers int64
			Available      int64
		}
		var aggs []AggRow
		if err := db.
			Model(&model.Computer{}).
			Select("lab_id as lab_id, COUNT(*) as total_computers, "+
				"COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) as available", model.StateAvailable).
			Group("lab_id").
			Scan(&aggs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate computers"})
			return
		}

		aggMap := make(map[int64]AggRow, len(aggs))
		for _, a := range aggs {
			aggMap[a.LabID] = a
		}

		responses := make([]LabResponse, 0, len(labs))
		for _, l := range labs {
			a := aggMap[l.ID]
			responses = append(responses, LabResponse{
				ID: l.ID, Name: l.Name, Description: l.Description,
				TotalComputers: a.TotalComputers, Available: a.Available,
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// OptionsResponse lists the labs with no reservation covering now and the
// software catalog, for the checkout form.
type OptionsResponse struct {
	Labs     []LabOption      `json:"labs"`
	Software []SoftwareOption `json:"software"`
}

type LabOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SoftwareOption struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// GetOptions handles the GET /api/options request.
func (h *Handler) GetOptions(c *gin.Context) {
	now := time.Now().UTC()

	labs, err := h.store.ListLabsFreeAt(c.Request.Context(), now)
	if err != nil {
		abortWithError(c, err)
		return
	}
	software, err := h.store.ListSoftware(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := OptionsResponse{
		Labs:     make([]LabOption, 0, len(labs)),
		Software: make([]SoftwareOption, 0, len(software)),
	}
	for _, l := range labs {
		resp.Labs = append(resp.Labs, LabOption{ID: l.ID, Name: l.Name})
	}
	for _, sw := range software {
		resp.Software = append(resp.Software, SoftwareOption{ID: sw.ID, Name: sw.Name, Version: sw.Version})
	}
	c.JSON(http.StatusOK, resp)
}
