package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"locker-bank-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router around the handler.
func NewRouter(h *Handler, ratePerSec float64, cacheTTL time.Duration) *gin.Engine {
	r := gin.Default()

	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}

	burst := 5
	if int(ratePerSec) > burst {
		burst = int(ratePerSec)
	}
	rateLimiter := mw.RateLimiter(rate.Limit(ratePerSec), burst)

	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/deposit/open", h.DepositOpen)
		api.POST("/deposit/close", h.DepositClose)
		api.POST("/withdraw/open", h.WithdrawOpen)
		api.POST("/withdraw/close", h.WithdrawClose)

		// The machine listing is safe to serve slightly stale; door states
		// are not, so the compartment status query stays uncached.
		api.GET("/machines", caching, h.ListMachines)
		api.GET("/machines/:machine_id/compartments", h.CompartmentStatus)
		api.POST("/machines/:machine_id/compartments/:number/reset", h.Reset)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
