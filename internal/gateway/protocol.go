package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/models"

	"github.com/shopspring/decimal"
)

// Inbound client event types
const (
	EventJoinAuction      = "join-auction"
	EventLeaveAuction     = "leave-auction"
	EventPlaceBid         = "place-bid"
	EventSetupAutoBid     = "setup-auto-bid"
	EventGetAuctionStatus = "get-auction-status"
	EventCancelBid        = "cancel-bid"
	EventPing             = "ping"
)

// Outbound event types
const (
	OutAuthenticated      = "authenticated"
	OutAuctionJoined      = "auction-joined"
	OutAuctionLeft        = "auction-left"
	OutUserJoined         = "user-joined"
	OutUserLeft           = "user-left"
	OutBidQueued          = "bid-queued"
	OutBidCancelled       = "bid-cancelled"
	OutAutoBidConfigured  = "auto-bid-configured"
	OutAuctionStatus      = "auction-status"
	OutNewBid             = "new-bid"
	OutAuctionUpdate      = "auction-update"
	OutBidSuccess         = "bid-success"
	OutOutbidNotification = "outbid-notification"
	OutBidError           = "bid-error"
	OutAuctionEnded       = "auction-ended"
	OutSystemMessage      = "system-message"
	OutPong               = "pong"
	OutError              = "error"
)

// ClientEvent is one inbound frame: {"type": "...", "data": {...}}
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is one outbound frame
type OutboundEvent struct {
	Type      string    `json:"type"`
	AuctionID string    `json:"auctionId,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Result is the reply owed to the connection that sent a client event
type Result struct {
	Reply OutboundEvent
	Err   error
}

type auctionRequest struct {
	AuctionID string `json:"auctionId"`
}

type bidRequest struct {
	AuctionID string          `json:"auctionId"`
	Amount    decimal.Decimal `json:"amount"`
}

type autoBidRequest struct {
	AuctionID string          `json:"auctionId"`
	MaxAmount decimal.Decimal `json:"maxAmount"`
	Increment decimal.Decimal `json:"increment"`
}

type cancelRequest struct {
	BidID string `json:"bidId"`
}

// AuthenticatedData is sent once the connection is registered
type AuthenticatedData struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
	Anonymous    bool   `json:"anonymous"`
}

// AuctionView is the auction state sent on join and status requests
type AuctionView struct {
	Title           string          `json:"title"`
	Status          string          `json:"status"`
	SellerID        string          `json:"sellerId"`
	CurrentPrice    decimal.Decimal `json:"currentPrice"`
	MinIncrement    decimal.Decimal `json:"minIncrement"`
	MinimumBid      decimal.Decimal `json:"minimumBid"`
	HighestBidderID string          `json:"highestBidderId,omitempty"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	TimeRemainingMS int64           `json:"timeRemainingMs"`
	Participants    int             `json:"participants"`
}

// PresenceData accompanies user-joined and user-left
type PresenceData struct {
	UserID       string `json:"userId"`
	Username     string `json:"username,omitempty"`
	Participants int    `json:"participants"`
}

// BidData describes a single bid in bid-related events
type BidData struct {
	BidID    string          `json:"bidId"`
	BidderID string          `json:"bidderId,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status,omitempty"`
	Origin   string          `json:"origin,omitempty"`
}

// PriceUpdateData accompanies auction-update and outbid-notification
type PriceUpdateData struct {
	CurrentPrice     decimal.Decimal `json:"currentPrice"`
	HighestBidderID  string          `json:"highestBidderId"`
	PreviousPrice    decimal.Decimal `json:"previousPrice"`
	PreviousBidderID string          `json:"previousBidderId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
}

// AutoBidData is the reply to setup-auto-bid
type AutoBidData struct {
	RuleID    string          `json:"ruleId"`
	MaxAmount decimal.Decimal `json:"maxAmount"`
	Increment decimal.Decimal `json:"increment"`
	Active    bool            `json:"active"`
}

// EndedData accompanies auction-ended
type EndedData struct {
	FinalPrice decimal.Decimal `json:"finalPrice"`
	Amount     decimal.Decimal `json:"amount"`
	WinnerID   string          `json:"winnerId,omitempty"`
	EndedAt    time.Time       `json:"endedAt"`
}

// SystemData accompanies system-message
type SystemData struct {
	Kind      string    `json:"kind"`
	Title     string    `json:"title,omitempty"`
	StartTime time.Time `json:"startTime,omitempty"`
}

func decodeData(ev ClientEvent, v any) error {
	if len(ev.Data) == 0 {
		return fmt.Errorf("%w: %s requires data", biddingerrors.ErrInvalidRequest, ev.Type)
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("%w: malformed %s data: %v", biddingerrors.ErrInvalidRequest, ev.Type, err)
	}
	return nil
}

func viewOf(snap models.AuctionSnapshot, participants int, now time.Time) AuctionView {
	return AuctionView{
		Title:           snap.Title,
		Status:          string(snap.Status),
		SellerID:        snap.SellerID,
		CurrentPrice:    snap.CurrentPrice,
		MinIncrement:    snap.MinIncrement,
		MinimumBid:      snap.CurrentPrice.Add(snap.MinIncrement),
		HighestBidderID: snap.HighestBidderID,
		StartTime:       snap.StartTime,
		EndTime:         snap.EndTime,
		TimeRemainingMS: snap.TimeRemaining(now).Milliseconds(),
		Participants:    participants,
	}
}

// errorEvent turns a failed operation into the reply frame. Internal errors are not echoed.
func errorEvent(eventType, auctionID string, err error, now time.Time) OutboundEvent {
	reason := biddingerrors.ReasonOf(err)
	message := err.Error()
	if reason == biddingerrors.ReasonInternal || reason == biddingerrors.ReasonInfrastructure {
		message = "request could not be processed, try again"
	}
	var verr *biddingerrors.ValidationError
	if errors.As(err, &verr) {
		message = verr.Error()
	}

	out := OutError
	if eventType == EventPlaceBid || eventType == EventCancelBid || eventType == EventSetupAutoBid {
		out = OutBidError
	}
	return OutboundEvent{
		Type:      out,
		AuctionID: auctionID,
		Code:      string(reason),
		Message:   message,
		Timestamp: now.UTC(),
		Data:      map[string]string{"event": eventType},
	}
}
