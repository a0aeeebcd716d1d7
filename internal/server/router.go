package server

import (
	auction "auction-house/internal/auctionService"
	"auction-house/internal/broadcast"
	handler "auction-house/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(auctionService *auction.AuctionService, hub *broadcast.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(auctionService, hub)

	users := router.Group("/users")
	{
		users.POST("", auctionHandler.RegisterUserHandler)
		users.GET("/:user_id", auctionHandler.GetUserHandler)
		users.POST("/:user_id/topup", auctionHandler.TopUpHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", auctionHandler.GetWinningBidHandler)
	}

	bids := router.Group("/bids")
	{
		bids.POST("", auctionHandler.PlaceBidHandler)
	}

	router.GET("/events", auctionHandler.StreamEventsHandler)

	return router
}
