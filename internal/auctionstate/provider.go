package auctionstate

import (
	"context"

	model "bidding-gateway/internal/models"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mock_provider.go -package=auctionstate bidding-gateway/internal/auctionstate Provider

// Provider is the authoritative source of auction state.
// GetAuctionSnapshot fails with ErrAuctionNotFound for unknown auctions; SetCurrentPrice fails
// with ErrPriceConflict when amount is not strictly above the current price.
type Provider interface {
	GetAuctionSnapshot(ctx context.Context, auctionID string) (model.AuctionSnapshot, error)
	SetCurrentPrice(ctx context.Context, auctionID string, amount decimal.Decimal, bidderID string) error
}

// Lister enumerates auctions for background watchers
type Lister interface {
	ListAuctions(ctx context.Context) ([]model.AuctionSnapshot, error)
}

// StatusWriter moves an auction between lifecycle states
type StatusWriter interface {
	SetStatus(ctx context.Context, auctionID string, status model.AuctionStatus) error
}
