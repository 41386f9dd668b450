package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"labreserve-backend/internal/model"
)

// createSeriesRequest is the JSON body for POST /api/series. Weekdays use
// Go's convention: 0 = Sunday .. 6 = Saturday.
type createSeriesRequest struct {
	LabID     int64  `json:"labId" binding:"required"`
	Subject   string `json:"subject"`
	Professor string `json:"professor"`
	StartDate string `json:"startDate" binding:"required"` // YYYY-MM-DD
	EndDate   string `json:"endDate" binding:"required"`
	StartTime string `json:"startTime" binding:"required"` // HH:MM
	EndTime   string `json:"endTime" binding:"required"`
	Weekdays  []int  `json:"weekdays" binding:"required"`
}

// CreateSeries handles POST /api/series.
func (h *Handler) CreateSeries(c *gin.Context) {
	var req createSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	series, err := req.toSeries()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.lifecycle.CreateSeries(c.Request.Context(), series)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             series.ID,
		"created":        result.Created,
		"alreadyPresent": result.AlreadyPresent,
	})
}

func (r *createSeriesRequest) toSeries() (*model.ReservationSeries, error) {
	startDate, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return nil, err
	}
	startMin, err := parseMinutes(r.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := parseMinutes(r.EndTime)
	if err != nil {
		return nil, err
	}

	mask := 0
	for _, d := range r.Weekdays {
		if d >= 0 && d <= 6 {
			mask |= 1 << uint(d)
		}
	}
	return &model.ReservationSeries{
		LabID:       r.LabID,
		Subject:     r.Subject,
		Professor:   r.Professor,
		StartDate:   startDate,
		EndDate:     endDate,
		StartMinute: startMin,
		EndMinute:   endMin,
		WeekdayMask: mask,
	}, nil
}

func parseMinutes(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// RegenerateSeries handles POST /api/series/:id/regenerate. Optional
// "from" and "to" query parameters (RFC3339) restrict the range.
func (h *Handler) RegenerateSeries(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid series ID"})
		return
	}

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp. Use RFC3339."})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp. Use RFC3339."})
			return
		}
	}

	result, err := h.lifecycle.RegenerateOccurrences(c.Request.Context(), id, from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteSeriesReservations handles DELETE /api/series/:id/reservations.
func (h *Handler) DeleteSeriesReservations(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid series ID"})
		return
	}

	deleted, err := h.lifecycle.DeleteOccurrencesOf(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// createReservationRequest is the JSON body for POST /api/reservations.
type createReservationRequest struct {
	LabID     int64     `json:"labId" binding:"required"`
	StartsAt  time.Time `json:"startsAt" binding:"required"`
	EndsAt    time.Time `json:"endsAt" binding:"required"`
	Subject   string    `json:"subject"`
	Professor string    `json:"professor"`
}

// CreateReservation handles POST /api/reservations (one-off).
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	r, err := h.lifecycle.CreateOneOff(c.Request.Context(), req.LabID, req.StartsAt, req.EndsAt, req.Subject, req.Professor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": r.ID})
}

// DeleteReservation handles DELETE /api/reservations/:id.
func (h *Handler) DeleteReservation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation ID"})
		return
	}

	if err := h.lifecycle.DeleteOccurrence(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
