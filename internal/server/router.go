package server

import (
	"net/http"
	"time"

	"bidding-gateway/internal/auth"
	"bidding-gateway/internal/gateway"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/internal/ratelimit"
	handler "bidding-gateway/services/bidding/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the components the HTTP surface routes to
type Dependencies struct {
	InstanceID  string
	Service     handler.BiddingServiceInterface
	Verifier    auth.Verifier
	AuthTimeout time.Duration
	Limiter     *ratelimit.Limiter
	Gateway     *gateway.Gateway
	WebSocket   http.Handler
	Gatherer    prometheus.Gatherer
	Metrics     *metrics.Metrics
	QueueDepth  func() int
}

// StatusResponse is served on GET /status
type StatusResponse struct {
	InstanceID string        `json:"instance_id"`
	Uptime     string        `json:"uptime"`
	QueueDepth int           `json:"queue_depth"`
	Gateway    gateway.Stats `json:"gateway"`
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	started := time.Now()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", func(c *gin.Context) {
		resp := StatusResponse{
			InstanceID: deps.InstanceID,
			Uptime:     time.Since(started).Round(time.Second).String(),
		}
		if deps.QueueDepth != nil {
			resp.QueueDepth = deps.QueueDepth()
		}
		if deps.Gateway != nil {
			resp.Gateway = deps.Gateway.Stats()
		}
		c.JSON(http.StatusOK, resp)
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.WebSocket != nil {
		router.GET("/ws", gin.WrapH(deps.WebSocket))
	}

	biddingHandler := handler.NewBiddingHandler(deps.Service, deps.InstanceID)

	bids := router.Group("/bids")
	bids.Use(AuthMiddleware(deps.Verifier, deps.AuthTimeout))
	{
		bids.POST("", RateLimitMiddleware(deps.Limiter, ratelimit.ClassBid, deps.Metrics), biddingHandler.PlaceBidHandler)
		bids.POST("/:bid_id/cancel", RateLimitMiddleware(deps.Limiter, ratelimit.ClassEvent, deps.Metrics), biddingHandler.CancelBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
	}

	return router
}
