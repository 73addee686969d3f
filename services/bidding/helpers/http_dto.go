package helpers

import (
	"time"

	model "bidding-gateway/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionID string          `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	BidID         string          `json:"bid_id"`
	AuctionID     string          `json:"auction_id"`
	BidderID      string          `json:"bidder_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Origin        string          `json:"origin"`
	PlacedAt      string          `json:"placed_at"`
	ProcessedAt   string          `json:"processed_at,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// NewBidResponse converts a bid record to its wire form
func NewBidResponse(bid model.Bid) BidResponse {
	resp := BidResponse{
		BidID:         bid.BidID,
		AuctionID:     bid.AuctionID,
		BidderID:      bid.BidderID,
		Amount:        bid.Amount,
		Status:        string(bid.Status),
		Origin:        string(bid.Origin),
		PlacedAt:      bid.PlacedAt.UTC().Format(time.RFC3339),
		FailureReason: bid.FailureReason,
	}
	if bid.ProcessedAt != nil {
		resp.ProcessedAt = bid.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// NewBidResponses converts a list of bid records
func NewBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, NewBidResponse(bid))
	}
	return out
}
