package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"labreserve-backend/config"
	"labreserve-backend/internal/lifecycle"
	"labreserve-backend/internal/mw"
	"labreserve-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, lc *lifecycle.Service) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, lc)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst, cfg.Server.RequestIPHeader)

	// Availability reads tolerate a short cache; mutations bypass it.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Availability reads
		api.GET("/labs", caching, GetLabs(db))
		api.GET("/labs/:lab_id/computers", caching, handler.GetLabComputers)
		api.GET("/labs/:lab_id/available", handler.GetAvailableComputers)
		api.GET("/computers/:id/availability", handler.GetComputerAvailability)
		api.GET("/options", handler.GetOptions)
		api.GET("/students/:id", handler.GetStudent)
		api.POST("/students/:id/checkout", handler.EndSessionForStudent)

		// Reservation lifecycle
		api.POST("/series", handler.CreateSeries)
		api.POST("/series/:id/regenerate", handler.RegenerateSeries)
		api.DELETE("/series/:id/reservations", handler.DeleteSeriesReservations)
		api.POST("/reservations", handler.CreateReservation)
		api.DELETE("/reservations/:id", handler.DeleteReservation)

		// Sessions and maintenance
		api.POST("/sessions", handler.StartSession)
		api.POST("/sessions/:id/end", handler.EndSession)
		api.POST("/maintenance", handler.StartMaintenance)
		api.POST("/maintenance/:id/end", handler.EndMaintenance)
	}

	return r
}
