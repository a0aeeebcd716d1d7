package models

import "time"

// Auction status values. An auction starts active and is moved to ended
// exactly once by the closer sweep; there are no other transitions.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// User represents a participant in the auction
type User struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

// Auction represents a timed sale of one product with a rising price.
// CurrentPrice never drops below StartPrice and never decreases while the
// auction is active. Version is bumped on every price/winner/status
// mutation and backs the optimistic per-auction update check.
type Auction struct {
	AuctionID    string    `json:"auction_id"`
	Product      string    `json:"product"`
	Duration     int       `json:"duration"` // minutes
	StartPrice   float64   `json:"start_price"`
	CurrentPrice float64   `json:"current_price"`
	EndTime      time.Time `json:"end_time"`
	Winner       string    `json:"winner,omitempty"`
	Status       string    `json:"status"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Active reports whether the auction still accepts bids.
func (a Auction) Active() bool {
	return a.Status == StatusActive
}

// Bid represents a user's bid on an auction. Bids are append-only and
// never mutated after creation.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
