package auctionstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bidding-gateway/internal/backoff"
	"bidding-gateway/internal/biddingerrors"
	model "bidding-gateway/internal/models"
	"bidding-gateway/utils"

	"github.com/shopspring/decimal"
)

// Retrying bounds every provider call with a timeout and retries transient failures.
// Not-found and price conflicts are answers, not failures, and are returned immediately.
type Retrying struct {
	next    Provider
	timeout time.Duration
	policy  backoff.Policy
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next with a per-call timeout and the given backoff policy
func NewRetrying(next Provider, timeout time.Duration, policy backoff.Policy) *Retrying {
	return &Retrying{
		next:    next,
		timeout: timeout,
		policy:  policy,
		sleep:   sleepCtx,
	}
}

// GetAuctionSnapshot implements Provider
func (r *Retrying) GetAuctionSnapshot(ctx context.Context, auctionID string) (model.AuctionSnapshot, error) {
	var snap model.AuctionSnapshot
	err := r.do(ctx, "get snapshot", auctionID, func(callCtx context.Context) error {
		var err error
		snap, err = r.next.GetAuctionSnapshot(callCtx, auctionID)
		return err
	})
	return snap, err
}

// SetCurrentPrice implements Provider
func (r *Retrying) SetCurrentPrice(ctx context.Context, auctionID string, amount decimal.Decimal, bidderID string) error {
	return r.do(ctx, "set price", auctionID, func(callCtx context.Context) error {
		return r.next.SetCurrentPrice(callCtx, auctionID, amount, bidderID)
	})
}

func (r *Retrying) do(ctx context.Context, op, auctionID string, call func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) || errors.Is(err, biddingerrors.ErrPriceConflict) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("auctionstate: %s %s: %w: %w", op, auctionID, biddingerrors.ErrInfrastructure, ctx.Err())
		}
		if r.policy.Exhausted(attempt) {
			return fmt.Errorf("auctionstate: %s %s failed after %d attempts: %w: %w", op, auctionID, attempt, biddingerrors.ErrInfrastructure, err)
		}

		delay := r.policy.NextDelay(attempt)
		utils.Warn("auction state call failed, retrying", map[string]any{
			"op":         op,
			"auction_id": auctionID,
			"attempt":    attempt,
			"delay":      delay.String(),
			"error":      err.Error(),
		})
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("auctionstate: %s %s: %w: %w", op, auctionID, biddingerrors.ErrInfrastructure, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
