package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Channels carried by the bus
const (
	ChannelBidAccepted     = "bid.accepted"
	ChannelBidRejected     = "bid.rejected"
	ChannelAuctionEnded    = "auction.ended"
	ChannelAuctionStarting = "auction.starting"
)

// Channels lists every channel the bridge replicates
var Channels = []string{ChannelBidAccepted, ChannelBidRejected, ChannelAuctionEnded, ChannelAuctionStarting}

// Event is the envelope published on every channel
type Event struct {
	Type       string          `json:"type"`
	AuctionID  string          `json:"auction_id"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent builds an event with a JSON-encoded payload
func NewEvent(channel, auctionID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("fanout: encode %s payload: %w", channel, err)
	}
	return Event{
		Type:      channel,
		AuctionID: auctionID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into v
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("fanout: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// BidAccepted is the payload of ChannelBidAccepted
type BidAccepted struct {
	BidID            string          `json:"bid_id"`
	BidderID         string          `json:"bidder_id"`
	Amount           decimal.Decimal `json:"amount"`
	PreviousPrice    decimal.Decimal `json:"previous_price"`
	PreviousBidderID string          `json:"previous_bidder_id,omitempty"`
	Origin           string          `json:"origin"`
	ConnectionID     string          `json:"connection_id,omitempty"`
	AcceptedAt       time.Time       `json:"accepted_at"`
}

// BidRejected is the payload of ChannelBidRejected
type BidRejected struct {
	BidID        string          `json:"bid_id"`
	BidderID     string          `json:"bidder_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	Detail       string          `json:"detail,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
}

// AuctionEnded is the payload of ChannelAuctionEnded
type AuctionEnded struct {
	FinalPrice decimal.Decimal `json:"final_price"`
	WinnerID   string          `json:"winner_id,omitempty"`
	EndedAt    time.Time       `json:"ended_at"`
}

// AuctionStarting is the payload of ChannelAuctionStarting
type AuctionStarting struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
}
