package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bidding-gateway/internal/auth"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/ratelimit"
	"bidding-gateway/internal/rooms"
	"bidding-gateway/internal/schedule"
	"bidding-gateway/utils"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=mock_bid_service.go -package=gateway bidding-gateway/internal/gateway BidService

// BidService is the bidding surface the gateway routes client events to
type BidService interface {
	SubmitBid(ctx context.Context, sub models.BidSubmission) (models.Bid, error)
	CancelBid(ctx context.Context, bidID, bidderID string) (models.Bid, error)
	SetupAutoBid(ctx context.Context, auctionID, bidderID string, maxAmount, increment decimal.Decimal) (models.AutoBidRule, error)
	AuctionSnapshot(ctx context.Context, auctionID string) (models.AuctionSnapshot, error)
}

// Sink delivers outbound events to one client transport
type Sink interface {
	Send(e OutboundEvent) error
	Close() error
}

// Options configures a Gateway
type Options struct {
	InstanceID  string
	Permissive  bool
	AuthTimeout time.Duration
	IdleTimeout time.Duration
	RoomGrace   time.Duration
}

// Connection is one live client. Its room binding and activity time are owned by the gateway.
type Connection struct {
	ID       string
	Identity models.Identity
	sink     Sink

	mu           sync.Mutex
	auctionID    string
	lastActivity time.Time
}

// AuctionID returns the auction room the connection is in, or ""
func (c *Connection) AuctionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auctionID
}

// LastActivity returns when the connection last sent an event
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Connection) setAuction(auctionID string) (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = c.auctionID
	c.auctionID = auctionID
	return previous
}

func (c *Connection) clearAuction(auctionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auctionID != auctionID {
		return false
	}
	c.auctionID = ""
	return true
}

func (c *Connection) touch(t time.Time) {
	c.mu.Lock()
	c.lastActivity = t
	c.mu.Unlock()
}

// Stats is the gateway section of the status surface
type Stats struct {
	Connections  int             `json:"connections"`
	Identities   int             `json:"identities"`
	Rooms        int             `json:"rooms"`
	Participants map[string]int  `json:"participants"`
	RateLimiter  ratelimit.Stats `json:"rate_limiter"`
}

// Gateway owns live connections, binds them to auction rooms and routes their events
type Gateway struct {
	verifier auth.Verifier
	service  BidService
	rooms    *rooms.Registry
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	opts     Options
	logger   *log.Entry

	now   func() time.Time
	after func(d time.Duration, f func())

	mu     sync.RWMutex
	conns  map[string]*Connection         // key: connectionID
	byUser map[string]map[string]struct{} // key: userID -> value: connectionIDs

	unsubs []func()
}

// New creates a Gateway
func New(verifier auth.Verifier, service BidService, registry *rooms.Registry, limiter *ratelimit.Limiter, m *metrics.Metrics, opts Options) *Gateway {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 5 * time.Second
	}
	return &Gateway{
		verifier: verifier,
		service:  service,
		rooms:    registry,
		limiter:  limiter,
		metrics:  m,
		opts:     opts,
		logger:   utils.Component("gateway"),
		now:      time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		conns:  make(map[string]*Connection),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Start registers the periodic sweep on s
func (g *Gateway) Start(s schedule.Scheduler, sweepInterval time.Duration) {
	s.Every(sweepInterval, func(context.Context) { g.Sweep(g.now()) })
}

// Authenticate resolves a handshake token to an identity. In permissive mode a missing or
// invalid token yields an anonymous identity that may watch but not bid.
func (g *Gateway) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		if g.opts.Permissive {
			return anonymousIdentity(), nil
		}
		return models.Identity{}, biddingerrors.ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.AuthTimeout)
	defer cancel()

	identity, err := g.verifier.VerifyToken(ctx, token)
	if err != nil {
		if g.opts.Permissive {
			g.logger.WithError(err).Debug("token rejected, continuing as anonymous")
			return anonymousIdentity(), nil
		}
		return models.Identity{}, fmt.Errorf("gateway: %w: %w", biddingerrors.ErrUnauthenticated, err)
	}
	return identity, nil
}

func anonymousIdentity() models.Identity {
	return models.Identity{
		UserID:    utils.GeneratePrefixedID("anon"),
		Username:  "guest",
		Role:      "guest",
		Anonymous: true,
	}
}

// Register binds an authenticated identity to a transport and announces it to the client
func (g *Gateway) Register(identity models.Identity, sink Sink) *Connection {
	now := g.now()
	conn := &Connection{
		ID:           utils.GeneratePrefixedID("conn"),
		Identity:     identity,
		sink:         sink,
		lastActivity: now,
	}

	g.mu.Lock()
	g.conns[conn.ID] = conn
	ids, ok := g.byUser[identity.UserID]
	if !ok {
		ids = make(map[string]struct{})
		g.byUser[identity.UserID] = ids
	}
	ids[conn.ID] = struct{}{}
	total := len(g.conns)
	g.mu.Unlock()

	g.metrics.SetConnections(total)
	g.send(conn, OutboundEvent{
		Type:      OutAuthenticated,
		Timestamp: now.UTC(),
		Data: AuthenticatedData{
			ConnectionID: conn.ID,
			UserID:       identity.UserID,
			Username:     identity.Username,
			Role:         identity.Role,
			Anonymous:    identity.Anonymous,
		},
	})

	g.logger.WithFields(log.Fields{
		"connection_id": conn.ID,
		"user_id":       identity.UserID,
		"anonymous":     identity.Anonymous,
	}).Info("client connected")
	return conn
}

// Connect authenticates and registers in one step
func (g *Gateway) Connect(ctx context.Context, token string, sink Sink) (*Connection, error) {
	identity, err := g.Authenticate(ctx, token)
	if err != nil {
		g.metrics.ConnectionAttempt("rejected")
		return nil, err
	}
	g.metrics.ConnectionAttempt("accepted")
	return g.Register(identity, sink), nil
}

// Connection looks up a live connection by id
func (g *Gateway) Connection(id string) (*Connection, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	conn, ok := g.conns[id]
	return conn, ok
}

// JoinAuction moves conn into the auction's room, leaving any previous room first
func (g *Gateway) JoinAuction(ctx context.Context, conn *Connection, auctionID string) (AuctionView, error) {
	if auctionID == "" {
		return AuctionView{}, fmt.Errorf("%w: missing auctionId", biddingerrors.ErrInvalidRequest)
	}
	if err := g.allow(conn, ratelimit.ClassJoin); err != nil {
		return AuctionView{}, err
	}

	snap, err := g.service.AuctionSnapshot(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			return AuctionView{}, fmt.Errorf("gateway: %w: auction %s", biddingerrors.ErrAccessDenied, auctionID)
		}
		return AuctionView{}, err
	}
	if snap.Status == models.AuctionDraft && snap.SellerID != conn.Identity.UserID {
		return AuctionView{}, fmt.Errorf("gateway: %w: auction %s", biddingerrors.ErrAccessDenied, auctionID)
	}

	// bind under the read lock so a concurrent Disconnect either sees the binding or
	// finds the connection already gone
	var previous string
	var count int
	g.mu.RLock()
	_, live := g.conns[conn.ID]
	if live {
		previous = conn.setAuction(auctionID)
		count = g.rooms.Join(auctionID, conn.ID)
	}
	g.mu.RUnlock()
	if !live {
		return AuctionView{}, fmt.Errorf("gateway: %w: %s", biddingerrors.ErrConnClosed, conn.ID)
	}

	if previous != "" && previous != auctionID {
		g.leaveRoom(conn, previous)
	}
	g.metrics.SetRooms(g.rooms.RoomCount())

	g.broadcast(auctionID, OutboundEvent{
		Type:      OutUserJoined,
		AuctionID: auctionID,
		Timestamp: g.now().UTC(),
		Data: PresenceData{
			UserID:       conn.Identity.UserID,
			Username:     conn.Identity.Username,
			Participants: count,
		},
	}, conn.ID)

	g.logger.WithFields(log.Fields{
		"connection_id": conn.ID,
		"user_id":       conn.Identity.UserID,
		"auction_id":    auctionID,
		"participants":  count,
	}).Debug("joined auction room")
	return viewOf(snap, count, g.now()), nil
}

// LeaveAuction removes conn from its current room
func (g *Gateway) LeaveAuction(conn *Connection) (string, error) {
	auctionID := conn.setAuction("")
	if auctionID == "" {
		return "", biddingerrors.ErrNotInAuction
	}
	g.leaveRoom(conn, auctionID)
	return auctionID, nil
}

func (g *Gateway) leaveRoom(conn *Connection, auctionID string) {
	count, ok := g.rooms.Leave(auctionID, conn.ID)
	if !ok {
		return
	}
	g.metrics.SetRooms(g.rooms.RoomCount())
	g.broadcast(auctionID, OutboundEvent{
		Type:      OutUserLeft,
		AuctionID: auctionID,
		Timestamp: g.now().UTC(),
		Data: PresenceData{
			UserID:       conn.Identity.UserID,
			Username:     conn.Identity.Username,
			Participants: count,
		},
	}, conn.ID)
}

// SubmitBid places a bid from a connection in the auction's room. The returned record is
// PENDING; the outcome arrives later as bid-success or bid-error.
func (g *Gateway) SubmitBid(ctx context.Context, conn *Connection, auctionID string, amount decimal.Decimal) (models.Bid, error) {
	if conn.Identity.Anonymous {
		return models.Bid{}, biddingerrors.ErrUnauthenticated
	}
	if auctionID == "" || !amount.IsPositive() {
		return models.Bid{}, fmt.Errorf("%w: auctionId and a positive amount are required", biddingerrors.ErrInvalidRequest)
	}
	if conn.AuctionID() != auctionID {
		return models.Bid{}, biddingerrors.ErrNotInAuction
	}
	if err := g.allow(conn, ratelimit.ClassBid); err != nil {
		return models.Bid{}, err
	}

	return g.service.SubmitBid(ctx, models.BidSubmission{
		AuctionID:    auctionID,
		BidderID:     conn.Identity.UserID,
		Amount:       amount,
		SubmittedAt:  g.now().UTC(),
		Origin:       models.OriginManual,
		ConnectionID: conn.ID,
		InstanceID:   g.opts.InstanceID,
	})
}

// SetupAutoBid creates or updates the connection owner's auto-bid rule
func (g *Gateway) SetupAutoBid(ctx context.Context, conn *Connection, auctionID string, maxAmount, increment decimal.Decimal) (models.AutoBidRule, error) {
	if conn.Identity.Anonymous {
		return models.AutoBidRule{}, biddingerrors.ErrUnauthenticated
	}
	if auctionID == "" {
		return models.AutoBidRule{}, fmt.Errorf("%w: missing auctionId", biddingerrors.ErrInvalidRequest)
	}
	return g.service.SetupAutoBid(ctx, auctionID, conn.Identity.UserID, maxAmount, increment)
}

// AuctionStatus returns the current auction state with the local participant count
func (g *Gateway) AuctionStatus(ctx context.Context, auctionID string) (AuctionView, error) {
	if auctionID == "" {
		return AuctionView{}, fmt.Errorf("%w: missing auctionId", biddingerrors.ErrInvalidRequest)
	}
	snap, err := g.service.AuctionSnapshot(ctx, auctionID)
	if err != nil {
		return AuctionView{}, err
	}
	return viewOf(snap, g.rooms.Count(auctionID), g.now()), nil
}

// CancelBid withdraws one of the connection owner's pending bids
func (g *Gateway) CancelBid(ctx context.Context, conn *Connection, bidID string) (models.Bid, error) {
	if conn.Identity.Anonymous {
		return models.Bid{}, biddingerrors.ErrUnauthenticated
	}
	if bidID == "" {
		return models.Bid{}, fmt.Errorf("%w: missing bidId", biddingerrors.ErrInvalidRequest)
	}
	return g.service.CancelBid(ctx, bidID, conn.Identity.UserID)
}

// Disconnect forgets conn and leaves its room. Bids it placed keep processing.
func (g *Gateway) Disconnect(conn *Connection, reason string) {
	g.mu.Lock()
	if _, ok := g.conns[conn.ID]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.conns, conn.ID)
	if ids, ok := g.byUser[conn.Identity.UserID]; ok {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(g.byUser, conn.Identity.UserID)
		}
	}
	total := len(g.conns)
	g.mu.Unlock()

	if auctionID := conn.setAuction(""); auctionID != "" {
		g.leaveRoom(conn, auctionID)
	}
	if err := conn.sink.Close(); err != nil {
		g.logger.WithError(err).WithField("connection_id", conn.ID).Debug("failed to close transport")
	}

	g.metrics.SetConnections(total)
	g.logger.WithFields(log.Fields{
		"connection_id": conn.ID,
		"user_id":       conn.Identity.UserID,
		"reason":        reason,
	}).Info("client disconnected")
}

// HandleClientEvent is the single dispatch point for inbound client events. Every event is
// charged to the event class of the rate limiter before it is routed.
func (g *Gateway) HandleClientEvent(ctx context.Context, conn *Connection, ev ClientEvent) Result {
	now := g.now()
	g.metrics.ClientEvent(ev.Type)

	if err := g.allow(conn, ratelimit.ClassEvent); err != nil {
		return failure(ev.Type, "", err, now)
	}
	conn.touch(now)

	switch ev.Type {
	case EventPing:
		return Result{Reply: OutboundEvent{Type: OutPong, Timestamp: now.UTC()}}

	case EventJoinAuction:
		var req auctionRequest
		if err := decodeData(ev, &req); err != nil {
			return failure(ev.Type, "", err, now)
		}
		view, err := g.JoinAuction(ctx, conn, req.AuctionID)
		if err != nil {
			return failure(ev.Type, req.AuctionID, err, now)
		}
		return Result{Reply: OutboundEvent{Type: OutAuctionJoined, AuctionID: req.AuctionID, Timestamp: now.UTC(), Data: view}}

	case EventLeaveAuction:
		auctionID, err := g.LeaveAuction(conn)
		if err != nil {
			return failure(ev.Type, "", err, now)
		}
		return Result{Reply: OutboundEvent{Type: OutAuctionLeft, AuctionID: auctionID, Timestamp: now.UTC()}}

	case EventPlaceBid:
		var req bidRequest
		if err := decodeData(ev, &req); err != nil {
			return failure(ev.Type, "", err, now)
		}
		bid, err := g.SubmitBid(ctx, conn, req.AuctionID, req.Amount)
		if err != nil {
			return failure(ev.Type, req.AuctionID, err, now)
		}
		return Result{Reply: OutboundEvent{
			Type:      OutBidQueued,
			AuctionID: bid.AuctionID,
			Message:   "bid accepted for processing",
			Timestamp: now.UTC(),
			Data:      BidData{BidID: bid.BidID, BidderID: bid.BidderID, Amount: bid.Amount, Status: string(bid.Status), Origin: string(bid.Origin)},
		}}

	case EventSetupAutoBid:
		var req autoBidRequest
		if err := decodeData(ev, &req); err != nil {
			return failure(ev.Type, "", err, now)
		}
		rule, err := g.SetupAutoBid(ctx, conn, req.AuctionID, req.MaxAmount, req.Increment)
		if err != nil {
			return failure(ev.Type, req.AuctionID, err, now)
		}
		return Result{Reply: OutboundEvent{
			Type:      OutAutoBidConfigured,
			AuctionID: rule.AuctionID,
			Timestamp: now.UTC(),
			Data:      AutoBidData{RuleID: rule.RuleID, MaxAmount: rule.MaxAmount, Increment: rule.Increment, Active: rule.Active},
		}}

	case EventGetAuctionStatus:
		var req auctionRequest
		if err := decodeData(ev, &req); err != nil {
			return failure(ev.Type, "", err, now)
		}
		view, err := g.AuctionStatus(ctx, req.AuctionID)
		if err != nil {
			return failure(ev.Type, req.AuctionID, err, now)
		}
		return Result{Reply: OutboundEvent{Type: OutAuctionStatus, AuctionID: req.AuctionID, Timestamp: now.UTC(), Data: view}}

	case EventCancelBid:
		var req cancelRequest
		if err := decodeData(ev, &req); err != nil {
			return failure(ev.Type, "", err, now)
		}
		bid, err := g.CancelBid(ctx, conn, req.BidID)
		if err != nil {
			return failure(ev.Type, "", err, now)
		}
		return Result{Reply: OutboundEvent{
			Type:      OutBidCancelled,
			AuctionID: bid.AuctionID,
			Timestamp: now.UTC(),
			Data:      BidData{BidID: bid.BidID, BidderID: bid.BidderID, Amount: bid.Amount, Status: string(bid.Status)},
		}}

	default:
		return failure(ev.Type, "", fmt.Errorf("%w: unknown event type %q", biddingerrors.ErrInvalidRequest, ev.Type), now)
	}
}

func failure(eventType, auctionID string, err error, now time.Time) Result {
	return Result{Reply: errorEvent(eventType, auctionID, err, now), Err: err}
}

func (g *Gateway) allow(conn *Connection, class ratelimit.Class) error {
	d := g.limiter.Allow(conn.Identity.UserID, class)
	if d.Allowed {
		return nil
	}
	g.metrics.RateLimited(string(class))
	return fmt.Errorf("%w: %s, retry in %s", biddingerrors.ErrRateLimited, class, d.RetryAfter.Round(time.Second))
}

// Sweep disconnects idle connections and drops elapsed rate-limit counters
func (g *Gateway) Sweep(now time.Time) int {
	var idle []*Connection
	if g.opts.IdleTimeout > 0 {
		g.mu.RLock()
		for _, conn := range g.conns {
			if now.Sub(conn.LastActivity()) > g.opts.IdleTimeout {
				idle = append(idle, conn)
			}
		}
		g.mu.RUnlock()
	}

	for _, conn := range idle {
		g.Disconnect(conn, "idle")
	}
	counters := g.limiter.Sweep(now)

	if len(idle) > 0 || counters > 0 {
		utils.Debug("gateway sweep", map[string]any{
			"idle_connections": len(idle),
			"expired_counters": counters,
		})
	}
	return len(idle)
}

// Stats reports live connection and room counts
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	connections := len(g.conns)
	identities := len(g.byUser)
	g.mu.RUnlock()

	return Stats{
		Connections:  connections,
		Identities:   identities,
		Rooms:        g.rooms.RoomCount(),
		Participants: g.rooms.Snapshot(),
		RateLimiter:  g.limiter.Stats(),
	}
}

func (g *Gateway) send(conn *Connection, e OutboundEvent) {
	if err := conn.sink.Send(e); err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"connection_id": conn.ID,
			"type":          e.Type,
		}).Debug("failed to deliver event")
	}
}

// broadcast sends e to every local member of the auction room except skipConnID
func (g *Gateway) broadcast(auctionID string, e OutboundEvent, skipConnID string) {
	for _, conn := range g.lookup(g.rooms.Members(auctionID)) {
		if conn.ID == skipConnID {
			continue
		}
		g.send(conn, e)
	}
}

func (g *Gateway) lookup(ids []string) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := g.conns[id]; ok {
			out = append(out, conn)
		}
	}
	return out
}

func (g *Gateway) userConnections(userID string) []*Connection {
	g.mu.RLock()
	ids := make([]string, 0, len(g.byUser[userID]))
	for id := range g.byUser[userID] {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	sort.Strings(ids)
	return g.lookup(ids)
}

func (g *Gateway) allConnections() []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Connection, 0, len(g.conns))
	for _, conn := range g.conns {
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
