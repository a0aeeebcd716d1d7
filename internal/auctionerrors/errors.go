package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrVersionConflict = errors.New("auction was modified concurrently")
)

// business logic errors
var (
	ErrInvalidBid          = errors.New("invalid bid")
	ErrBidTooLow           = errors.New("bid amount too low")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAuctionClosed       = errors.New("auction is not active")
	ErrInvalidAuction      = errors.New("invalid auction parameters")
	ErrInvalidUser         = errors.New("invalid user parameters")
	ErrInvalidTopUp        = errors.New("invalid top-up")
)
