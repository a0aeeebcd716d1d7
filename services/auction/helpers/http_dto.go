package helpers

// Request/Response DTOs
type RegisterUserRequest struct {
	Username string `json:"username" binding:"required"`
}

type TopUpRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type CreateAuctionRequest struct {
	Product    string  `json:"product" binding:"required"`
	Duration   int     `json:"duration" binding:"required,min=1"` // minutes
	StartPrice float64 `json:"start_price" binding:"gte=0"`
}

type PlaceBidRequest struct {
	AuctionID string  `json:"auction_id" binding:"required"`
	UserID    string  `json:"user_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type PlaceBidResponse struct {
	Accepted bool         `json:"accepted"`
	Reason   string       `json:"reason,omitempty"`
	Bid      *BidResponse `json:"bid,omitempty"`
}
