package pipeline

import (
	"context"

	"bidding-gateway/internal/models"
	"bidding-gateway/utils"

	"github.com/shopspring/decimal"
)

// Outcome is emitted once per bid that reaches a terminal status
type Outcome struct {
	Bid              models.Bid
	Reason           string
	PreviousPrice    decimal.Decimal
	PreviousBidderID string
}

// Outbid reports whether the outcome displaced another bidder
func (o Outcome) Outbid() bool {
	return o.Bid.Status == models.StatusAccepted && o.PreviousBidderID != "" && o.PreviousBidderID != o.Bid.BidderID
}

// NotificationSink receives bid outcomes for delivery to users outside the live connection
type NotificationSink interface {
	Notify(ctx context.Context, o Outcome)
}

// LogSink writes outcomes to the log
type LogSink struct{}

func (LogSink) Notify(_ context.Context, o Outcome) {
	fields := map[string]any{
		"bid_id":     o.Bid.BidID,
		"auction_id": o.Bid.AuctionID,
		"bidder_id":  o.Bid.BidderID,
		"amount":     o.Bid.Amount.String(),
		"status":     o.Bid.Status,
		"origin":     o.Bid.Origin,
	}
	if o.Reason != "" {
		fields["reason"] = o.Reason
	}
	utils.Debug("bid outcome", fields)

	if o.Outbid() {
		utils.Info("bidder outbid", map[string]any{
			"auction_id":     o.Bid.AuctionID,
			"outbid_user_id": o.PreviousBidderID,
			"new_amount":     o.Bid.Amount.String(),
		})
	}
}
