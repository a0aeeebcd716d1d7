package auction

import (
	"errors"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/broadcast"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"

	"github.com/shopspring/decimal"
)

// monetary comparisons are rounded to cents before deciding acceptance
const monetaryPrecision = 2

// AuctionService defines the business logic for running auctions: user
// registration and top-ups, auction creation, bid processing, and the
// expiry sweep. Accepted bids and closed auctions are announced through
// the publisher; rejected bids produce no observable effect.
type AuctionService struct {
	repo repository.AuctionStore
	pub  broadcast.Publisher
	now  func() time.Time
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionStore, pub broadcast.Publisher) *AuctionService {
	return &AuctionService{
		repo: repo,
		pub:  pub,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service time source. Tests inject a fixed clock
// to make auction deadlines deterministic.
func (s *AuctionService) SetClock(clock func() time.Time) {
	s.now = clock
}

// BidResult reports the outcome of a bid. Reason is set only when the bid
// was not accepted.
type BidResult struct {
	Accepted bool           `json:"accepted"`
	Reason   string         `json:"reason,omitempty"`
	Auction  models.Auction `json:"auction,omitempty"`
	Bid      models.Bid     `json:"bid,omitempty"`
}

// RegisterUser creates a new user with a zero balance
func (s *AuctionService) RegisterUser(username string) (models.User, error) {
	if username == "" {
		return models.User{}, fmt.Errorf("service: %w - empty username", auctionerrors.ErrInvalidUser)
	}

	user := models.User{
		UserID:   utils.GenerateID(),
		Username: username,
		Balance:  0,
	}
	if err := s.repo.CreateUser(user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to create user %s: %w", username, err)
	}
	return user, nil
}

// TopUp credits the user's balance. Top-up is the only operation that
// mutates a balance; placing or winning a bid never debits it.
func (s *AuctionService) TopUp(userID string, amount float64) (models.User, error) {
	if userID == "" {
		return models.User{}, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidTopUp)
	}
	if amount <= 0 {
		return models.User{}, fmt.Errorf("service: %w - non-positive amount", auctionerrors.ErrInvalidTopUp)
	}

	user, err := s.repo.CreditBalance(userID, amount)
	if err != nil {
		return models.User{}, fmt.Errorf("service: failed to top up user %s: %w", userID, err)
	}
	return user, nil
}

// GetUser returns a single user by ID
func (s *AuctionService) GetUser(userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidUser)
	}

	user, err := s.repo.GetUser(userID)
	if err != nil {
		return models.User{}, fmt.Errorf("service: failed to get user %s: %w", userID, err)
	}
	return user, nil
}

// CreateAuction opens a new auction. The end time is fixed at creation:
// creation time plus duration minutes.
func (s *AuctionService) CreateAuction(product string, duration int, startPrice float64) (models.Auction, error) {
	if product == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty product", auctionerrors.ErrInvalidAuction)
	}
	if duration < 1 {
		return models.Auction{}, fmt.Errorf("service: %w - duration must be at least one minute", auctionerrors.ErrInvalidAuction)
	}
	if startPrice < 0 {
		return models.Auction{}, fmt.Errorf("service: %w - negative start price", auctionerrors.ErrInvalidAuction)
	}

	now := s.now()
	auction := models.Auction{
		AuctionID:    utils.GenerateID(),
		Product:      product,
		Duration:     duration,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		EndTime:      now.Add(time.Duration(duration) * time.Minute),
		Status:       models.StatusActive,
		CreatedAt:    now,
	}
	if err := s.repo.CreateAuction(auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for %s: %w", product, err)
	}
	return auction, nil
}

// PlaceBid validates and applies a single bid. A bid is accepted only when
// the auction is active, the amount strictly exceeds the current price, and
// the bidder's balance covers the amount. Acceptance commits price and
// winner through the versioned update, appends the bid record, and
// publishes exactly one update event. Any rejection leaves no trace.
//
// Losing the versioned update to a concurrent bid triggers one silent
// retry against the fresh auction state; a second loss rejects the bid.
func (s *AuctionService) PlaceBid(auctionID, userID string, amount float64) (BidResult, error) {
	if auctionID == "" || userID == "" || amount <= 0 {
		return rejected("invalid bid"), nil
	}

	user, err := s.repo.GetUser(userID)
	if errors.Is(err, auctionerrors.ErrUserNotFound) {
		return rejected("user not found"), nil
	}
	if err != nil {
		return BidResult{}, fmt.Errorf("service: failed to load user %s: %w", userID, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		auction, err := s.repo.GetAuction(auctionID)
		if errors.Is(err, auctionerrors.ErrAuctionNotFound) {
			return rejected("auction not found"), nil
		}
		if err != nil {
			return BidResult{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
		}

		if reason := bidRejection(auction, user, amount); reason != "" {
			return rejected(reason), nil
		}

		updated, err := s.repo.UpdateAuctionOnBid(auction.AuctionID, auction.Version, amount, user.UserID)
		if errors.Is(err, auctionerrors.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, auctionerrors.ErrAuctionClosed) || errors.Is(err, auctionerrors.ErrAuctionNotFound) {
			return rejected("auction is not active"), nil
		}
		if err != nil {
			return BidResult{}, fmt.Errorf("service: failed to apply bid on auction %s: %w", auctionID, err)
		}

		bid := models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: s.now(),
		}
		if err := s.repo.RecordBid(bid); err != nil {
			utils.Error("accepted bid could not be recorded", map[string]any{
				"auction_id": auctionID,
				"user_id":    userID,
				"error":      err.Error(),
			})
			return BidResult{}, fmt.Errorf("service: failed to record bid on auction %s: %w", auctionID, err)
		}

		s.pub.Publish(broadcast.Event{Type: broadcast.EventAuctionUpdated, Auction: updated})
		return BidResult{Accepted: true, Auction: updated, Bid: bid}, nil
	}

	return rejected("lost to a concurrent bid"), nil
}

// bidRejection checks the acceptance rules and returns a reason when the
// bid must be rejected, or "" when it may proceed. Amounts are compared
// as decimals rounded to cents so float noise cannot flip a decision.
func bidRejection(auction models.Auction, user models.User, amount float64) string {
	if !auction.Active() {
		return "auction is not active"
	}

	amt := decimal.NewFromFloat(amount).Round(monetaryPrecision)
	price := decimal.NewFromFloat(auction.CurrentPrice).Round(monetaryPrecision)
	balance := decimal.NewFromFloat(user.Balance).Round(monetaryPrecision)

	if !amt.GreaterThan(price) {
		return "bid amount too low"
	}
	if balance.LessThan(amt) {
		return "insufficient balance"
	}
	return ""
}

func rejected(reason string) BidResult {
	return BidResult{Accepted: false, Reason: reason}
}

// CloseExpiredAuctions transitions every active auction whose deadline has
// passed to ended and publishes one ended event per closed auction. The
// underlying sweep only touches active records, so calling this again for
// the same instant is a no-op.
func (s *AuctionService) CloseExpiredAuctions(now time.Time) ([]models.Auction, error) {
	closed, err := s.repo.ExpireDue(now)
	if err != nil {
		return nil, fmt.Errorf("service: failed to close expired auctions: %w", err)
	}

	for _, auction := range closed {
		s.pub.Publish(broadcast.Event{Type: broadcast.EventAuctionEnded, Auction: auction})
		utils.Info("auction ended", map[string]any{
			"auction_id":  auction.AuctionID,
			"product":     auction.Product,
			"winner":      auction.Winner,
			"final_price": auction.CurrentPrice,
		})
	}
	return closed, nil
}

// GetAuction returns a single auction by ID
func (s *AuctionService) GetAuction(auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}

	auction, err := s.repo.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListAuctions returns all auctions
func (s *AuctionService) ListAuctions() ([]models.Auction, error) {
	auctions, err := s.repo.ListAuctions()
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// GetBidsForAuction returns all bids for a specific auction
func (s *AuctionService) GetBidsForAuction(auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for a specific auction
func (s *AuctionService) GetWinningBid(auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return winningBid, nil
}
