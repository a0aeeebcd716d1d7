package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
)

// AuctionStore defines the storage interface for the auction system.
// UpdateAuctionOnBid and ExpireDue are the only mutation points for an
// auction's price/winner/status; both are conditional on the record's
// current state so that at most one writer per auction can commit at a time.
type AuctionStore interface {
	CreateUser(user model.User) error
	GetUser(userID string) (model.User, error)
	CreditBalance(userID string, amount float64) (model.User, error)

	CreateAuction(auction model.Auction) error
	GetAuction(auctionID string) (model.Auction, error)
	ListAuctions() ([]model.Auction, error)
	UpdateAuctionOnBid(auctionID string, expectedVersion int64, price float64, winner string) (model.Auction, error)
	ExpireDue(now time.Time) ([]model.Auction, error)

	RecordBid(bid model.Bid) error
	GetBidsByAuction(auctionID string) ([]model.Bid, error)
	GetWinningBid(auctionID string) (model.Bid, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionStore
type MemoryRepo struct {
	mu       sync.RWMutex
	users    map[string]model.User    // key: userID -> value: user
	auctions map[string]model.Auction // key: auctionID -> value: auction
	bids     map[string][]model.Bid   // key: auctionID -> value: list of bids
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:    make(map[string]model.User),
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
	}
}

// CreateUser stores a new user record
func (r *MemoryRepo) CreateUser(user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.UserID] = user
	return nil
}

// GetUser returns the user with the given ID
func (r *MemoryRepo) GetUser(userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	return user, nil
}

// CreditBalance adds amount to the user's balance and returns the updated user
func (r *MemoryRepo) CreditBalance(userID string, amount float64) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("credit balance for user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}

	user.Balance += amount
	r.users[userID] = user
	return user, nil
}

// CreateAuction stores a new auction record
func (r *MemoryRepo) CreateAuction(auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns the auction with the given ID
func (r *MemoryRepo) GetAuction(auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListAuctions returns all auctions ordered by creation time
func (r *MemoryRepo) ListAuctions() ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auctions := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		auctions = append(auctions, a)
	}
	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].AuctionID < auctions[j].AuctionID
		}
		return auctions[i].CreatedAt.Before(auctions[j].CreatedAt)
	})
	return auctions, nil
}

// UpdateAuctionOnBid applies an accepted bid's price and winner to the
// auction, conditional on the stored version matching expectedVersion and
// the auction still being active. A version mismatch means another bid
// committed in between; a non-active status means the closer sweep got
// there first.
func (r *MemoryRepo) UpdateAuctionOnBid(auctionID string, expectedVersion int64, price float64, winner string) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if !auction.Active() {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, auctionerrors.ErrAuctionClosed)
	}
	if auction.Version != expectedVersion {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, auctionerrors.ErrVersionConflict)
	}

	auction.CurrentPrice = price
	auction.Winner = winner
	auction.Version++
	r.auctions[auctionID] = auction
	return auction, nil
}

// ExpireDue transitions every active auction whose end time has passed to
// ended and returns the auctions flipped by this call. Auctions already
// ended are left untouched, so running the sweep again is a no-op.
func (r *MemoryRepo) ExpireDue(now time.Time) ([]model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed []model.Auction
	for id, auction := range r.auctions {
		if !auction.Active() || auction.EndTime.After(now) {
			continue
		}
		auction.Status = model.StatusEnded
		auction.Version++
		r.auctions[id] = auction
		closed = append(closed, auction)
	}

	sort.Slice(closed, func(i, j int) bool {
		if closed[i].EndTime.Equal(closed[j].EndTime) {
			return closed[i].AuctionID < closed[j].AuctionID
		}
		return closed[i].EndTime.Before(closed[j].EndTime)
	})
	return closed, nil
}

// RecordBid appends a bid to the auction's bid log
func (r *MemoryRepo) RecordBid(bid model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}

	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	return nil
}

// GetBidsByAuction returns all bids for an auction
func (r *MemoryRepo) GetBidsByAuction(auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[auctionID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// GetWinningBid returns the highest bid for an auction
func (r *MemoryRepo) GetWinningBid(auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[auctionID]
	if !ok || len(bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}

	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount > winning.Amount || (b.Amount == winning.Amount && b.CreatedAt.Before(winning.CreatedAt)) {
			winning = b
		}
	}
	return winning, nil
}
