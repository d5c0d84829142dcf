package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"seat-checkin-backend/internal/mw"
	"seat-checkin-backend/internal/roster"
	"seat-checkin-backend/internal/station"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(svc *station.Service) *gin.Engine {
	r := gin.Default()

	cfg := svc.Config().Server
	handler := NewHandler(svc)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.StationKey(cfg.StationHeader))

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	svc.OnRosterChange(func(*roster.Roster) { cacheStore.Flush() })
	caching := mw.Cache(cacheStore, ttl, svc.RosterGeneration)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/scans", handler.PostScan)
		api.DELETE("/scans/:code", handler.DeleteScan)
		api.DELETE("/scans", handler.DeleteScans)

		api.GET("/checkins", handler.GetCheckIns)
		api.GET("/seats", handler.GetSeats)
		api.GET("/groups", handler.GetGroups)
		api.GET("/notifications", handler.GetNotifications)

		api.GET("/roster", caching, handler.GetRoster)
		api.PUT("/roster", handler.PutRoster)
		api.GET("/roster/problems", caching, handler.GetRosterProblems)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	// The event stream is long-lived; it is not counted against the rate limit.
	r.GET("/api/events", handler.Events)

	return r
}
