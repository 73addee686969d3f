package repository

import (
	"bidding-gateway/internal/biddingerrors"
	model "bidding-gateway/internal/models"
	"fmt"
	"sort"
	"sync"
	"time"
)

//go:generate mockgen -destination=mock_repository.go -package=repository bidding-gateway/internal/repository AuctionDB

// AuctionDB defines the bid ledger, bid history and auto-bid rule storage
type AuctionDB interface {
	CreateBid(bid model.Bid) error
	GetBid(bidID string) (model.Bid, error)
	TransitionBid(bidID string, from, to model.BidStatus, mutate func(*model.Bid)) (model.Bid, error)
	GetBidsByAuction(auctionID string) ([]model.Bid, error)
	GetBidsByUser(userID string) ([]model.Bid, error)
	ListBidsByStatus(statuses ...model.BidStatus) []model.Bid
	GetWinningBid(auctionID string) (model.Bid, error)
	CountAccepted(auctionID, bidderID string) int
	CountRecentBids(bidderID string, since time.Time, excludeBidID string) int

	AppendHistory(entry model.BidHistoryEntry) error
	GetHistory(auctionID string) []model.BidHistoryEntry

	UpsertAutoBidRule(rule model.AutoBidRule) (model.AutoBidRule, error)
	GetAutoBidRule(auctionID, bidderID string) (model.AutoBidRule, error)
	ListActiveAutoBidRules() []model.AutoBidRule
	DeactivateAutoBidRule(ruleID string) error
}

// legal status transitions; PROCESSING -> PROCESSING records a retry attempt
var transitions = map[model.BidStatus][]model.BidStatus{
	model.StatusPending:    {model.StatusProcessing, model.StatusCancelled},
	model.StatusProcessing: {model.StatusProcessing, model.StatusAccepted, model.StatusRejected},
}

func legalTransition(from, to model.BidStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu        sync.RWMutex
	bids      map[string]model.Bid               // key: bidID -> value: bid record
	byAuction map[string][]string                // key: auctionID -> value: bidIDs in creation order
	byUser    map[string][]string                // key: userID -> value: bidIDs in creation order
	leaders   map[string]string                  // key: auctionID -> value: bidID of the latest accepted bid
	history   map[string][]model.BidHistoryEntry // key: auctionID -> value: history entries
	recorded  map[string]struct{}                // bidIDs already present in history
	rules     map[string]model.AutoBidRule       // key: ruleID -> value: rule
	ruleKeys  map[string]string                  // key: auctionID/bidderID -> value: ruleID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		bids:      make(map[string]model.Bid),
		byAuction: make(map[string][]string),
		byUser:    make(map[string][]string),
		leaders:   make(map[string]string),
		history:   make(map[string][]model.BidHistoryEntry),
		recorded:  make(map[string]struct{}),
		rules:     make(map[string]model.AutoBidRule),
		ruleKeys:  make(map[string]string),
	}
}

// CreateBid stores a new bid record
func (r *MemoryRepo) CreateBid(bid model.Bid) error {
	if bid.BidID == "" || bid.AuctionID == "" || bid.BidderID == "" {
		return fmt.Errorf("create bid: %w - missing bid, auction or bidder id", biddingerrors.ErrInvalidBid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bids[bid.BidID]; exists {
		return fmt.Errorf("create bid %s: %w", bid.BidID, biddingerrors.ErrDuplicateBid)
	}

	r.bids[bid.BidID] = bid
	r.byAuction[bid.AuctionID] = append(r.byAuction[bid.AuctionID], bid.BidID)
	r.byUser[bid.BidderID] = append(r.byUser[bid.BidderID], bid.BidID)
	if bid.Status == model.StatusAccepted {
		r.leaders[bid.AuctionID] = bid.BidID
	}
	return nil
}

// GetBid returns a single bid record
func (r *MemoryRepo) GetBid(bidID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bid, ok := r.bids[bidID]
	if !ok {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	return bid, nil
}

// TransitionBid moves a bid from one status to another if, and only if, it is currently
// in the from status. mutate, if not nil, is applied to the record under the same lock.
func (r *MemoryRepo) TransitionBid(bidID string, from, to model.BidStatus, mutate func(*model.Bid)) (model.Bid, error) {
	if !legalTransition(from, to) {
		return model.Bid{}, fmt.Errorf("transition bid %s %s->%s: %w", bidID, from, to, biddingerrors.ErrInvalidTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bid, ok := r.bids[bidID]
	if !ok {
		return model.Bid{}, fmt.Errorf("transition bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	if bid.Status != from {
		return bid, fmt.Errorf("transition bid %s: status is %s, expected %s: %w", bidID, bid.Status, from, biddingerrors.ErrInvalidTransition)
	}

	bid.Status = to
	if mutate != nil {
		mutate(&bid)
	}
	r.bids[bidID] = bid

	if to == model.StatusAccepted {
		r.leaders[bid.AuctionID] = bid.BidID
	}
	return bid, nil
}

// GetBidsByAuction returns all bids for an auction in submission order
func (r *MemoryRepo) GetBidsByAuction(auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byAuction[auctionID]
	if len(ids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return r.collect(ids), nil
}

// GetBidsByUser returns all bids a user has placed, across auctions
func (r *MemoryRepo) GetBidsByUser(userID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	if len(ids) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return r.collect(ids), nil
}

// ListBidsByStatus returns every bid in any of the given statuses, oldest first
func (r *MemoryRepo) ListBidsByStatus(statuses ...model.BidStatus) []model.Bid {
	want := make(map[model.BidStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Bid, 0)
	for _, b := range r.bids {
		if _, ok := want[b.Status]; ok {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out
}

// GetWinningBid returns the most recently accepted bid for an auction
func (r *MemoryRepo) GetWinningBid(auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.leaders[auctionID]
	if !ok {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return r.bids[id], nil
}

// CountAccepted returns how many of the bidder's bids on the auction were accepted
func (r *MemoryRepo) CountAccepted(auctionID, bidderID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.byUser[bidderID] {
		b := r.bids[id]
		if b.AuctionID == auctionID && b.Status == model.StatusAccepted {
			n++
		}
	}
	return n
}

// CountRecentBids returns how many bids the bidder placed since the given time,
// across all auctions, ignoring cancelled bids. When excludeBidID names a recorded bid,
// only bids placed before it are counted.
func (r *MemoryRepo) CountRecentBids(bidderID string, since time.Time, excludeBidID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var until time.Time
	if excluded, ok := r.bids[excludeBidID]; ok && excludeBidID != "" {
		until = excluded.PlacedAt
	}

	n := 0
	for _, id := range r.byUser[bidderID] {
		if id == excludeBidID {
			continue
		}
		b := r.bids[id]
		if b.Status == model.StatusCancelled || b.PlacedAt.Before(since) {
			continue
		}
		if !until.IsZero() && !b.PlacedAt.Before(until) {
			continue
		}
		n++
	}
	return n
}

// AppendHistory records an accepted bid; a second entry for the same bid is ignored
func (r *MemoryRepo) AppendHistory(entry model.BidHistoryEntry) error {
	if entry.BidID == "" || entry.AuctionID == "" {
		return fmt.Errorf("append history: %w - missing bid or auction id", biddingerrors.ErrInvalidBid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.recorded[entry.BidID]; done {
		return nil
	}
	r.recorded[entry.BidID] = struct{}{}
	r.history[entry.AuctionID] = append(r.history[entry.AuctionID], entry)
	return nil
}

// GetHistory returns the accepted-bid history of an auction, oldest first
func (r *MemoryRepo) GetHistory(auctionID string) []model.BidHistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.BidHistoryEntry(nil), r.history[auctionID]...)
}

// UpsertAutoBidRule creates the bidder's rule for an auction, or updates and reactivates
// the existing one so at most one rule exists per (auction, bidder)
func (r *MemoryRepo) UpsertAutoBidRule(rule model.AutoBidRule) (model.AutoBidRule, error) {
	if rule.AuctionID == "" || rule.BidderID == "" {
		return model.AutoBidRule{}, fmt.Errorf("upsert auto-bid rule: %w - missing auction or bidder id", biddingerrors.ErrInvalidBid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ruleKey(rule.AuctionID, rule.BidderID)
	if id, ok := r.ruleKeys[key]; ok {
		existing := r.rules[id]
		existing.MaxAmount = rule.MaxAmount
		existing.Increment = rule.Increment
		existing.Active = true
		existing.UpdatedAt = rule.UpdatedAt
		r.rules[id] = existing
		return existing, nil
	}

	if rule.RuleID == "" {
		return model.AutoBidRule{}, fmt.Errorf("upsert auto-bid rule: %w - missing rule id", biddingerrors.ErrInvalidBid)
	}
	rule.Active = true
	r.rules[rule.RuleID] = rule
	r.ruleKeys[key] = rule.RuleID
	return rule, nil
}

// GetAutoBidRule returns the bidder's rule for an auction
func (r *MemoryRepo) GetAutoBidRule(auctionID, bidderID string) (model.AutoBidRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.ruleKeys[ruleKey(auctionID, bidderID)]
	if !ok {
		return model.AutoBidRule{}, fmt.Errorf("get auto-bid rule for %s/%s: %w", auctionID, bidderID, biddingerrors.ErrAutoBidNotFound)
	}
	return r.rules[id], nil
}

// ListActiveAutoBidRules returns all active rules, oldest first
func (r *MemoryRepo) ListActiveAutoBidRules() []model.AutoBidRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.AutoBidRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeactivateAutoBidRule turns a rule off
func (r *MemoryRepo) DeactivateAutoBidRule(ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[ruleID]
	if !ok {
		return fmt.Errorf("deactivate auto-bid rule %s: %w", ruleID, biddingerrors.ErrAutoBidNotFound)
	}
	rule.Active = false
	rule.UpdatedAt = time.Now().UTC()
	r.rules[ruleID] = rule
	return nil
}

func (r *MemoryRepo) collect(ids []string) []model.Bid {
	out := make([]model.Bid, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.bids[id])
	}
	return out
}

func ruleKey(auctionID, bidderID string) string {
	return auctionID + "/" + bidderID
}
