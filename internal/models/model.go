package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus is the lifecycle state of a bid record
type BidStatus string

const (
	StatusPending    BidStatus = "PENDING"
	StatusProcessing BidStatus = "PROCESSING"
	StatusAccepted   BidStatus = "ACCEPTED"
	StatusRejected   BidStatus = "REJECTED"
	StatusCancelled  BidStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible
func (s BidStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// Origin tells a human bid apart from one placed by an auto-bid rule
type Origin string

const (
	OriginManual    Origin = "manual"
	OriginAutomatic Origin = "automatic"
)

// Identity is the authenticated (or anonymous) principal behind a connection
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Anonymous bool   `json:"anonymous"`
}

// BidSubmission is the immutable unit of work entering the pipeline
type BidSubmission struct {
	AuctionID    string          `json:"auction_id"`
	BidderID     string          `json:"bidder_id"`
	Amount       decimal.Decimal `json:"amount"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	Origin       Origin          `json:"origin"`
	ConnectionID string          `json:"connection_id,omitempty"`
	InstanceID   string          `json:"instance_id,omitempty"`
}

// Bid is the durable record of a submission as it moves through the pipeline
type Bid struct {
	BidID         string          `json:"bid_id"`
	AuctionID     string          `json:"auction_id"`
	BidderID      string          `json:"bidder_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        BidStatus       `json:"status"`
	Origin        Origin          `json:"origin"`
	PlacedAt      time.Time       `json:"placed_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Attempts      int             `json:"attempts"`
	ConnectionID  string          `json:"-"`
	InstanceID    string          `json:"-"`
}

// BidHistoryEntry is appended once per accepted bid
type BidHistoryEntry struct {
	BidID            string          `json:"bid_id"`
	AuctionID        string          `json:"auction_id"`
	BidderID         string          `json:"bidder_id"`
	Amount           decimal.Decimal `json:"amount"`
	PreviousPrice    decimal.Decimal `json:"previous_price"`
	PreviousBidderID string          `json:"previous_bidder_id,omitempty"`
	AcceptedAt       time.Time       `json:"accepted_at"`
}

// AuctionStatus mirrors the status reported by the auction state provider
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "draft"
	AuctionScheduled AuctionStatus = "scheduled"
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

// AuctionSnapshot is a point-in-time view of an auction
type AuctionSnapshot struct {
	AuctionID       string          `json:"auction_id"`
	Title           string          `json:"title"`
	Status          AuctionStatus   `json:"status"`
	SellerID        string          `json:"seller_id"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MinIncrement    decimal.Decimal `json:"min_increment"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	HighestBidderID string          `json:"highest_bidder_id,omitempty"`
}

// TimeRemaining returns the time left before the auction closes, never negative
func (a AuctionSnapshot) TimeRemaining(now time.Time) time.Duration {
	if left := a.EndTime.Sub(now); left > 0 {
		return left
	}
	return 0
}

// AutoBidRule is a standing instruction to counter-bid up to MaxAmount
type AutoBidRule struct {
	RuleID    string          `json:"rule_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	MaxAmount decimal.Decimal `json:"max_amount"`
	Increment decimal.Decimal `json:"increment"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
