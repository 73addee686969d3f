package auctionstate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bidding-gateway/internal/biddingerrors"
	model "bidding-gateway/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStore is a concurrency-safe in-memory auction state provider
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]model.AuctionSnapshot // key: auctionID -> value: auction
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]model.AuctionSnapshot),
	}
}

// AddAuction inserts or replaces an auction. A zero current price starts at the starting price.
func (s *MemoryStore) AddAuction(a model.AuctionSnapshot) {
	if a.CurrentPrice.IsZero() {
		a.CurrentPrice = a.StartingPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.AuctionID] = a
}

// GetAuctionSnapshot returns the current state of an auction
func (s *MemoryStore) GetAuctionSnapshot(ctx context.Context, auctionID string) (model.AuctionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.AuctionSnapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return model.AuctionSnapshot{}, fmt.Errorf("auctionstate: get %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// SetCurrentPrice raises the current price and records the new leader
func (s *MemoryStore) SetCurrentPrice(ctx context.Context, auctionID string, amount decimal.Decimal, bidderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auctionstate: set price on %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if !amount.GreaterThan(a.CurrentPrice) {
		return fmt.Errorf("auctionstate: set price on %s: %s is not above %s: %w", auctionID, amount, a.CurrentPrice, biddingerrors.ErrPriceConflict)
	}

	a.CurrentPrice = amount
	a.HighestBidderID = bidderID
	s.auctions[auctionID] = a
	return nil
}

// SetStatus changes the lifecycle status of an auction
func (s *MemoryStore) SetStatus(ctx context.Context, auctionID string, status model.AuctionStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auctionstate: set status on %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	a.Status = status
	s.auctions[auctionID] = a
	return nil
}

// ListAuctions returns every auction ordered by end time
func (s *MemoryStore) ListAuctions(ctx context.Context) ([]model.AuctionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AuctionSnapshot, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].AuctionID < out[j].AuctionID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out, nil
}
