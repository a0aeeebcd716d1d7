package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"auction-house/internal/auctionerrors"
	auction "auction-house/internal/auctionService"
	"auction-house/internal/broadcast"
	model "auction-house/internal/models"
	"auction-house/services/auction/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	RegisterUser(username string) (model.User, error)
	TopUp(userID string, amount float64) (model.User, error)
	GetUser(userID string) (model.User, error)
	CreateAuction(product string, duration int, startPrice float64) (model.Auction, error)
	PlaceBid(auctionID, userID string, amount float64) (auction.BidResult, error)
	GetAuction(auctionID string) (model.Auction, error)
	ListAuctions() ([]model.Auction, error)
	GetBidsForAuction(auctionID string) ([]model.Bid, error)
	GetWinningBid(auctionID string) (model.Bid, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
	hub     *broadcast.Hub
}

func NewAuctionHandler(service AuctionServiceInterface, hub *broadcast.Hub) *AuctionHandler {
	return &AuctionHandler{service: service, hub: hub}
}

// RegisterUserHandler handles POST /users
func (h *AuctionHandler) RegisterUserHandler(c *gin.Context) {
	var req helpers.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterUserHandler", err)
		return
	}

	user, err := h.service.RegisterUser(req.Username)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("RegisterUserHandler: failed to register user", map[string]any{
			"username": req.Username,
			"error":    err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, user, "user registered successfully")
	helpers.LogSuccess("RegisterUserHandler", "user registered successfully", map[string]any{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

// TopUpHandler handles POST /users/:user_id/topup
func (h *AuctionHandler) TopUpHandler(c *gin.Context) {
	userID := c.Param("user_id")

	var req helpers.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "TopUpHandler", err)
		return
	}

	user, err := h.service.TopUp(userID, req.Amount)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("TopUpHandler: failed to top up", map[string]any{
			"user_id": userID,
			"amount":  req.Amount,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "balance topped up successfully")
	helpers.LogSuccess("TopUpHandler", "balance topped up successfully", map[string]any{
		"user_id": user.UserID,
		"balance": user.Balance,
	})
}

// GetUserHandler handles GET /users/:user_id
func (h *AuctionHandler) GetUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	user, err := h.service.GetUser(userID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetUserHandler: error retrieving user", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "user retrieved successfully")
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	created, err := h.service.CreateAuction(req.Product, req.Duration, req.StartPrice)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to create auction", map[string]any{
			"product": req.Product,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, created, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id":  created.AuctionID,
		"product":     created.Product,
		"start_price": created.StartPrice,
		"end_time":    created.EndTime,
	})
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	auctions, err := h.service.ListAuctions()
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ListAuctionsHandler: error listing auctions", map[string]any{"error": err.Error()})
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	found, err := h.service.GetAuction(auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, found, "auction retrieved successfully")
}

// PlaceBidHandler handles POST /bids. An accepted bid answers 201 with the
// recorded bid; a rejected bid answers 200 with accepted=false and a reason.
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	result, err := h.service.PlaceBid(req.AuctionID, req.UserID, req.Amount)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("PlaceBidHandler: failed to process bid", map[string]any{
			"auction_id": req.AuctionID,
			"user_id":    req.UserID,
			"error":      err.Error(),
		})
		return
	}

	if !result.Accepted {
		resp := helpers.PlaceBidResponse{Accepted: false, Reason: result.Reason}
		utils.JSONResponse(c, http.StatusOK, resp, "bid not accepted")
		utils.Info("PlaceBidHandler: bid rejected", map[string]any{
			"auction_id": req.AuctionID,
			"user_id":    req.UserID,
			"amount":     req.Amount,
			"reason":     result.Reason,
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		Accepted: true,
		Bid: &helpers.BidResponse{
			BidID:     result.Bid.BidID,
			AuctionID: result.Bid.AuctionID,
			UserID:    result.Bid.UserID,
			Amount:    result.Bid.Amount,
			CreatedAt: result.Bid.CreatedAt.UTC().Format(time.RFC3339),
		},
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid accepted")
	helpers.LogSuccess("PlaceBidHandler", "bid accepted", map[string]any{
		"bid_id":        result.Bid.BidID,
		"auction_id":    result.Bid.AuctionID,
		"user_id":       result.Bid.UserID,
		"amount":        result.Bid.Amount,
		"current_price": result.Auction.CurrentPrice,
	})
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(auctionID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning
func (h *AuctionHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetWinningBid(auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"auction_id": auctionID})
			return
		}
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.BidResponse{
		BidID:     bid.BidID,
		AuctionID: bid.AuctionID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}

	utils.JSONResponse(c, http.StatusOK, resp, "winning bid retrieved successfully")
}

// StreamEventsHandler handles GET /events: a server-sent-event stream of
// auction updates and endings for connected observers. No replay; an
// observer only sees events published while it is attached.
func (h *AuctionHandler) StreamEventsHandler(c *gin.Context) {
	events, cancel := h.hub.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
