package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"labreserve-backend/internal/lifecycle"
	"labreserve-backend/internal/recurrence"
	"labreserve-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	lifecycle *lifecycle.Service
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, lc *lifecycle.Service) *Handler {
	return &Handler{
		store:     s,
		lifecycle: lc,
	}
}

// abortWithError maps domain errors onto HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrLabNotFound),
		errors.Is(err, store.ErrComputerNotFound),
		errors.Is(err, store.ErrSeriesNotFound),
		errors.Is(err, store.ErrReservationNotFound),
		errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrHoldNotFound),
		errors.Is(err, store.ErrStudentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrSessionOpen),
		errors.Is(err, store.ErrHoldOpen),
		errors.Is(err, store.ErrComputerUnavailable):
		status = http.StatusConflict
	case errors.Is(err, recurrence.ErrInvalidSeries),
		errors.Is(err, lifecycle.ErrInvalidWindow),
		errors.Is(err, lifecycle.ErrSeriesInactive):
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
