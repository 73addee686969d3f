package gateway

import (
	"context"
	"fmt"

	"bidding-gateway/internal/fanout"

	log "github.com/sirupsen/logrus"
)

// Subscriber is the receiving half of the fan-out bus
type Subscriber interface {
	Subscribe(channel string, h fanout.Handler) (func(), error)
}

// Subscribe attaches the gateway to every fan-out channel it pushes to clients
func (g *Gateway) Subscribe(bus Subscriber) error {
	handlers := map[string]fanout.Handler{
		fanout.ChannelBidAccepted:     g.onBidAccepted,
		fanout.ChannelBidRejected:     g.onBidRejected,
		fanout.ChannelAuctionEnded:    g.onAuctionEnded,
		fanout.ChannelAuctionStarting: g.onAuctionStarting,
	}
	for _, channel := range fanout.Channels {
		unsub, err := bus.Subscribe(channel, handlers[channel])
		if err != nil {
			g.Unsubscribe()
			return fmt.Errorf("gateway: subscribe %s: %w", channel, err)
		}
		g.unsubs = append(g.unsubs, unsub)
	}
	return nil
}

// Unsubscribe detaches all fan-out handlers
func (g *Gateway) Unsubscribe() {
	for _, unsub := range g.unsubs {
		unsub()
	}
	g.unsubs = nil
}

func (g *Gateway) onBidAccepted(_ context.Context, e fanout.Event) {
	var p fanout.BidAccepted
	if err := e.Decode(&p); err != nil {
		g.logger.WithError(err).Warn("dropping malformed event")
		return
	}
	ts := e.Timestamp.UTC()

	g.broadcast(e.AuctionID, OutboundEvent{
		Type:      OutNewBid,
		AuctionID: e.AuctionID,
		Timestamp: ts,
		Data:      BidData{BidID: p.BidID, BidderID: p.BidderID, Amount: p.Amount, Status: "ACCEPTED", Origin: p.Origin},
	}, "")
	update := PriceUpdateData{
		CurrentPrice:     p.Amount,
		HighestBidderID:  p.BidderID,
		PreviousPrice:    p.PreviousPrice,
		PreviousBidderID: p.PreviousBidderID,
		Amount:           p.Amount,
	}
	g.broadcast(e.AuctionID, OutboundEvent{
		Type:      OutAuctionUpdate,
		AuctionID: e.AuctionID,
		Timestamp: ts,
		Data:      update,
	}, "")

	if conn, ok := g.Connection(p.ConnectionID); ok && p.ConnectionID != "" {
		g.send(conn, OutboundEvent{
			Type:      OutBidSuccess,
			AuctionID: e.AuctionID,
			Timestamp: ts,
			Data:      BidData{BidID: p.BidID, BidderID: p.BidderID, Amount: p.Amount, Status: "ACCEPTED", Origin: p.Origin},
		})
	}

	if p.PreviousBidderID == "" || p.PreviousBidderID == p.BidderID {
		return
	}
	for _, conn := range g.userConnections(p.PreviousBidderID) {
		g.send(conn, OutboundEvent{
			Type:      OutOutbidNotification,
			AuctionID: e.AuctionID,
			Message:   "you have been outbid",
			Timestamp: ts,
			Data:      update,
		})
	}
}

func (g *Gateway) onBidRejected(_ context.Context, e fanout.Event) {
	var p fanout.BidRejected
	if err := e.Decode(&p); err != nil {
		g.logger.WithError(err).Warn("dropping malformed event")
		return
	}

	// only the connection that placed the bid hears about the rejection
	conn, ok := g.Connection(p.ConnectionID)
	if !ok || p.ConnectionID == "" {
		return
	}
	message := p.Reason
	if p.Detail != "" {
		message = p.Detail
	}
	g.send(conn, OutboundEvent{
		Type:      OutBidError,
		AuctionID: e.AuctionID,
		Code:      p.Reason,
		Message:   message,
		Timestamp: e.Timestamp.UTC(),
		Data:      BidData{BidID: p.BidID, BidderID: p.BidderID, Amount: p.Amount, Status: "REJECTED"},
	})
}

func (g *Gateway) onAuctionEnded(_ context.Context, e fanout.Event) {
	var p fanout.AuctionEnded
	if err := e.Decode(&p); err != nil {
		g.logger.WithError(err).Warn("dropping malformed event")
		return
	}

	g.broadcast(e.AuctionID, OutboundEvent{
		Type:      OutAuctionEnded,
		AuctionID: e.AuctionID,
		Timestamp: e.Timestamp.UTC(),
		Data:      EndedData{FinalPrice: p.FinalPrice, Amount: p.FinalPrice, WinnerID: p.WinnerID, EndedAt: p.EndedAt},
	}, "")

	auctionID := e.AuctionID
	g.after(g.opts.RoomGrace, func() { g.closeRoom(auctionID) })
}

// closeRoom drops an ended auction's room and unbinds its members
func (g *Gateway) closeRoom(auctionID string) {
	members := g.rooms.Remove(auctionID)
	for _, conn := range g.lookup(members) {
		conn.clearAuction(auctionID)
	}
	g.metrics.SetRooms(g.rooms.RoomCount())
	g.logger.WithFields(log.Fields{
		"auction_id": auctionID,
		"members":    len(members),
	}).Debug("closed auction room")
}

func (g *Gateway) onAuctionStarting(_ context.Context, e fanout.Event) {
	var p fanout.AuctionStarting
	if err := e.Decode(&p); err != nil {
		g.logger.WithError(err).Warn("dropping malformed event")
		return
	}

	msg := OutboundEvent{
		Type:      OutSystemMessage,
		AuctionID: e.AuctionID,
		Message:   fmt.Sprintf("%s is starting soon", p.Title),
		Timestamp: e.Timestamp.UTC(),
		Data:      SystemData{Kind: "auction-starting-soon", Title: p.Title, StartTime: p.StartTime},
	}
	for _, conn := range g.allConnections() {
		g.send(conn, msg)
	}
}
