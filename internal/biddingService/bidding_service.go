package bidding

import (
	"context"
	"fmt"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/repository"
	"bidding-gateway/utils"

	"github.com/shopspring/decimal"
)

// Enqueuer is the intake side of the bid processing pipeline
type Enqueuer interface {
	Enqueue(ctx context.Context, sub models.BidSubmission) (models.Bid, error)
	Cancel(ctx context.Context, bidID, bidderID string) (models.Bid, error)
}

// BiddingService is the single submission path for manual, REST and automatic bids
type BiddingService struct {
	repo      repository.AuctionDB
	provider  auctionstate.Provider
	validator *Validator
	queue     Enqueuer
	now       func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, provider auctionstate.Provider, validator *Validator, queue Enqueuer) *BiddingService {
	return &BiddingService{
		repo:      repo,
		provider:  provider,
		validator: validator,
		queue:     queue,
		now:       time.Now,
	}
}

// SubmitBid validates a submission and hands it to the pipeline. A bid rejected here
// leaves no record behind; the returned record is PENDING.
func (s *BiddingService) SubmitBid(ctx context.Context, sub models.BidSubmission) (models.Bid, error) {
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now().UTC()
	}
	if sub.Origin == "" {
		sub.Origin = models.OriginManual
	}

	if err := s.validator.Validate(ctx, sub, ""); err != nil {
		return models.Bid{}, err
	}

	bid, err := s.queue.Enqueue(ctx, sub)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to enqueue bid on auction %s by %s: %w", sub.AuctionID, sub.BidderID, err)
	}
	return bid, nil
}

// CancelBid withdraws a bid that has not started processing
func (s *BiddingService) CancelBid(ctx context.Context, bidID, bidderID string) (models.Bid, error) {
	if bidID == "" || bidderID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing bidID or bidderID", biddingerrors.ErrInvalidBid)
	}

	bid, err := s.queue.Cancel(ctx, bidID, bidderID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to cancel bid %s: %w", bidID, err)
	}
	return bid, nil
}

// SetupAutoBid creates or updates the bidder's automatic bidding rule for an auction
func (s *BiddingService) SetupAutoBid(ctx context.Context, auctionID, bidderID string, maxAmount, increment decimal.Decimal) (models.AutoBidRule, error) {
	if auctionID == "" || bidderID == "" {
		return models.AutoBidRule{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !maxAmount.IsPositive() || !increment.IsPositive() {
		return models.AutoBidRule{}, fmt.Errorf("service: %w - max amount and increment must be positive", biddingerrors.ErrInvalidBid)
	}

	snap, err := s.provider.GetAuctionSnapshot(ctx, auctionID)
	if err != nil {
		return models.AutoBidRule{}, fmt.Errorf("service: failed to fetch auction %s: %w", auctionID, err)
	}
	switch {
	case snap.Status == models.AuctionEnded || snap.Status == models.AuctionCancelled:
		return models.AutoBidRule{}, biddingerrors.NewValidationError(biddingerrors.ErrAuctionEnded, "")
	case snap.SellerID == bidderID:
		return models.AutoBidRule{}, biddingerrors.NewValidationError(biddingerrors.ErrSelfBid, "")
	case increment.LessThan(snap.MinIncrement):
		return models.AutoBidRule{}, biddingerrors.NewValidationError(biddingerrors.ErrBelowMinimum, fmt.Sprintf("increment must be at least %s", snap.MinIncrement.StringFixed(2)))
	case !maxAmount.GreaterThan(snap.CurrentPrice):
		return models.AutoBidRule{}, biddingerrors.NewValidationError(biddingerrors.ErrBelowMinimum, fmt.Sprintf("max amount must exceed current price %s", snap.CurrentPrice.StringFixed(2)))
	}

	now := s.now().UTC()
	rule, err := s.repo.UpsertAutoBidRule(models.AutoBidRule{
		RuleID:    utils.GenerateID(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		MaxAmount: maxAmount,
		Increment: increment,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return models.AutoBidRule{}, fmt.Errorf("service: failed to save auto-bid rule: %w", err)
	}

	utils.Info("auto-bid rule saved", map[string]any{
		"rule_id":    rule.RuleID,
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"max_amount": maxAmount.String(),
		"increment":  increment.String(),
	})
	return rule, nil
}

// AuctionSnapshot returns the current auction state
func (s *BiddingService) AuctionSnapshot(ctx context.Context, auctionID string) (models.AuctionSnapshot, error) {
	if auctionID == "" {
		return models.AuctionSnapshot{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	snap, err := s.provider.GetAuctionSnapshot(ctx, auctionID)
	if err != nil {
		return models.AuctionSnapshot{}, fmt.Errorf("service: failed to fetch auction %s: %w", auctionID, err)
	}
	return snap, nil
}

// GetBid returns a single bid record
func (s *BiddingService) GetBid(bidID string) (models.Bid, error) {
	if bidID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty bid ID", biddingerrors.ErrInvalidBid)
	}

	bid, err := s.repo.GetBid(bidID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get bid %s: %w", bidID, err)
	}
	return bid, nil
}

// GetBidsForAuction returns all bids for a specific auction
func (s *BiddingService) GetBidsForAuction(auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetWinningBid returns the bid currently holding the auction's price
func (s *BiddingService) GetWinningBid(auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return winningBid, nil
}

// GetBidsByUser returns all bids a user has placed
func (s *BiddingService) GetBidsByUser(userID string) ([]models.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}
	return bids, nil
}

// GetHistory returns the accepted-bid history of an auction
func (s *BiddingService) GetHistory(auctionID string) []models.BidHistoryEntry {
	return s.repo.GetHistory(auctionID)
}
