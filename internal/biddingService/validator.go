package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/repository"

	"github.com/shopspring/decimal"
)

// Rules holds the configurable thresholds used by Validate
type Rules struct {
	Ceiling               decimal.Decimal
	MaxAcceptedPerAuction int
	BurstThreshold        int
	BurstWindow           time.Duration
}

// DefaultRules returns the thresholds used when nothing is configured
func DefaultRules() Rules {
	return Rules{
		Ceiling:               decimal.NewFromInt(1_000_000_000),
		MaxAcceptedPerAuction: 50,
		BurstThreshold:        3,
		BurstWindow:           60 * time.Second,
	}
}

// Validator evaluates the bid rules against live auction state and the bid ledger
type Validator struct {
	provider auctionstate.Provider
	repo     repository.AuctionDB
	rules    Rules
	now      func() time.Time
}

// NewValidator creates a Validator
func NewValidator(provider auctionstate.Provider, repo repository.AuctionDB, rules Rules) *Validator {
	return &Validator{
		provider: provider,
		repo:     repo,
		rules:    rules,
		now:      time.Now,
	}
}

// Validate runs the bid rules in order and stops at the first failure.
// Business failures are *biddingerrors.ValidationError; anything else is an infrastructure error.
// excludeBidID keeps a bid that is already in the ledger from counting against itself.
func (v *Validator) Validate(ctx context.Context, sub models.BidSubmission, excludeBidID string) error {
	_, err := v.Check(ctx, sub, excludeBidID)
	return err
}

// Check is Validate that also returns the auction snapshot the rules were evaluated against
func (v *Validator) Check(ctx context.Context, sub models.BidSubmission, excludeBidID string) (models.AuctionSnapshot, error) {
	if sub.AuctionID == "" || sub.BidderID == "" {
		return models.AuctionSnapshot{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !sub.Amount.IsPositive() {
		return models.AuctionSnapshot{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}

	snap, err := v.provider.GetAuctionSnapshot(ctx, sub.AuctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			return snap, biddingerrors.NewValidationError(biddingerrors.ErrAuctionNotFound, sub.AuctionID)
		}
		return snap, fmt.Errorf("service: failed to fetch auction %s: %w", sub.AuctionID, err)
	}
	return snap, v.evaluate(snap, sub, excludeBidID)
}

func (v *Validator) evaluate(snap models.AuctionSnapshot, sub models.BidSubmission, excludeBidID string) error {
	now := v.now()
	switch {
	case snap.Status == models.AuctionEnded:
		return biddingerrors.NewValidationError(biddingerrors.ErrAuctionEnded, "")
	case snap.Status != models.AuctionActive:
		return biddingerrors.NewValidationError(biddingerrors.ErrAuctionNotActive, fmt.Sprintf("status is %s", snap.Status))
	case !now.Before(snap.EndTime):
		return biddingerrors.NewValidationError(biddingerrors.ErrAuctionEnded, fmt.Sprintf("ended at %s", snap.EndTime.UTC().Format(time.RFC3339)))
	}

	if sub.BidderID == snap.SellerID {
		return biddingerrors.NewValidationError(biddingerrors.ErrSelfBid, "")
	}

	minimum := snap.CurrentPrice.Add(snap.MinIncrement)
	if sub.Amount.LessThan(minimum) {
		return biddingerrors.NewValidationError(biddingerrors.ErrBelowMinimum, fmt.Sprintf("minimum is %s", minimum.StringFixed(2)))
	}

	if sub.Amount.GreaterThan(v.rules.Ceiling) {
		return biddingerrors.NewValidationError(biddingerrors.ErrAboveCeiling, fmt.Sprintf("ceiling is %s", v.rules.Ceiling.String()))
	}

	if accepted := v.repo.CountAccepted(sub.AuctionID, sub.BidderID); accepted >= v.rules.MaxAcceptedPerAuction {
		return biddingerrors.NewValidationError(biddingerrors.ErrSubmissionLimitExceeded, fmt.Sprintf("%d accepted bids, limit %d", accepted, v.rules.MaxAcceptedPerAuction))
	}

	recent := v.repo.CountRecentBids(sub.BidderID, now.Add(-v.rules.BurstWindow), excludeBidID)
	if recent >= v.rules.BurstThreshold {
		return biddingerrors.NewValidationError(biddingerrors.ErrSuspiciousPattern, fmt.Sprintf("%d bids in the last %s", recent, v.rules.BurstWindow))
	}

	return nil
}
