package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeQueue records PENDING bids in the repo the way the pipeline intake does
type fakeQueue struct {
	mu       sync.Mutex
	repo     *repository.MemoryRepo
	enqueued []models.BidSubmission
	err      error
}

func (f *fakeQueue) Enqueue(_ context.Context, sub models.BidSubmission) (models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return models.Bid{}, f.err
	}
	bid := models.Bid{
		BidID:     uuid.NewString(),
		AuctionID: sub.AuctionID,
		BidderID:  sub.BidderID,
		Amount:    sub.Amount,
		Status:    models.StatusPending,
		Origin:    sub.Origin,
		PlacedAt:  sub.SubmittedAt,
	}
	if err := f.repo.CreateBid(bid); err != nil {
		return models.Bid{}, err
	}
	f.enqueued = append(f.enqueued, sub)
	return bid, nil
}

func (f *fakeQueue) Cancel(_ context.Context, bidID, bidderID string) (models.Bid, error) {
	bid, err := f.repo.GetBid(bidID)
	if err != nil {
		return models.Bid{}, err
	}
	if bid.BidderID != bidderID {
		return models.Bid{}, biddingerrors.ErrNotBidOwner
	}
	return f.repo.TransitionBid(bidID, models.StatusPending, models.StatusCancelled, nil)
}

type serviceFixture struct {
	service *BiddingService
	store   *auctionstate.MemoryStore
	repo    *repository.MemoryRepo
	queue   *fakeQueue
}

func newServiceFixture() serviceFixture {
	store := auctionstate.NewMemoryStore()
	store.AddAuction(activeAuction("a1"))
	store.AddAuction(activeAuction("a2"))

	repo := repository.NewMemoryRepo()
	queue := &fakeQueue{repo: repo}
	validator := newTestValidator(store, repo, DefaultRules())

	svc := NewBiddingService(repo, store, validator, queue)
	return serviceFixture{service: svc, store: store, repo: repo, queue: queue}
}

// Tests SubmitBid
func TestBiddingService_SubmitBid(t *testing.T) {
	tests := []struct {
		name       string
		sub        models.BidSubmission
		queueErr   error
		wantReason biddingerrors.Reason
		wantErr    error
	}{
		{name: "valid_bid_is_pending", sub: submission("a1", "u1", 1100)},
		{name: "self_bid_rejected_before_enqueue", sub: submission("a1", "seller", 1100), wantReason: biddingerrors.ReasonSelfBid},
		{name: "below_minimum_rejected_before_enqueue", sub: submission("a1", "u1", 1050), wantReason: biddingerrors.ReasonBelowMinimum},
		{name: "queue_failure_is_wrapped", sub: submission("a1", "u1", 1100), queueErr: biddingerrors.ErrQueueClosed, wantErr: biddingerrors.ErrQueueClosed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newServiceFixture()
			f.queue.err = tc.queueErr

			bid, err := f.service.SubmitBid(context.Background(), tc.sub)
			switch {
			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)
			case tc.wantReason != "":
				require.Equal(t, tc.wantReason, biddingerrors.ReasonOf(err))
				require.Empty(t, f.queue.enqueued, "rejected bids never reach the pipeline")
				_, err := f.repo.GetBidsByAuction(tc.sub.AuctionID)
				require.ErrorIs(t, err, biddingerrors.ErrNoBids)
			default:
				require.NoError(t, err)
				require.Equal(t, models.StatusPending, bid.Status)
				require.Len(t, f.queue.enqueued, 1)
			}
		})
	}
}

func TestBiddingService_SubmitBid_Defaults(t *testing.T) {
	f := newServiceFixture()

	sub := submission("a1", "u1", 1100)
	sub.Origin = ""
	sub.SubmittedAt = time.Time{}

	_, err := f.service.SubmitBid(context.Background(), sub)
	require.NoError(t, err)
	require.Equal(t, models.OriginManual, f.queue.enqueued[0].Origin)
	require.False(t, f.queue.enqueued[0].SubmittedAt.IsZero())
}

// Scenario: seller S lists an auction and bids on it
func TestBiddingService_SellerCannotBid(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.SubmitBid(context.Background(), submission("a1", "seller", 5000))
	require.ErrorIs(t, err, biddingerrors.ErrSelfBid)
}

// Scenario: five bids within 60 seconds against a burst threshold of three
func TestBiddingService_BurstDetection(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	var reasons []biddingerrors.Reason
	for i := 0; i < 5; i++ {
		auction := "a1"
		if i%2 == 1 {
			auction = "a2"
		}
		_, err := f.service.SubmitBid(ctx, submission(auction, "u1", int64(1100+i*100)))
		if err != nil {
			reasons = append(reasons, biddingerrors.ReasonOf(err))
			continue
		}
		reasons = append(reasons, "")
	}

	require.Equal(t, []biddingerrors.Reason{
		"", "", "",
		biddingerrors.ReasonSuspiciousPattern,
		biddingerrors.ReasonSuspiciousPattern,
	}, reasons)
	require.Len(t, f.queue.enqueued, 3)

	// another bidder is unaffected
	_, err := f.service.SubmitBid(ctx, submission("a1", "u2", 1100))
	require.NoError(t, err)
}

// Tests CancelBid
func TestBiddingService_CancelBid(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	bid, err := f.service.SubmitBid(ctx, submission("a1", "u1", 1100))
	require.NoError(t, err)

	tests := []struct {
		name    string
		bidID   string
		bidder  string
		wantErr error
	}{
		{name: "missing_bid_id", bidID: "", bidder: "u1", wantErr: biddingerrors.ErrInvalidBid},
		{name: "unknown_bid", bidID: "nope", bidder: "u1", wantErr: biddingerrors.ErrBidNotFound},
		{name: "other_bidder", bidID: bid.BidID, bidder: "u2", wantErr: biddingerrors.ErrNotBidOwner},
		{name: "owner_cancels_pending", bidID: bid.BidID, bidder: "u1"},
		{name: "second_cancel_fails", bidID: bid.BidID, bidder: "u1", wantErr: biddingerrors.ErrInvalidTransition},
	}

	// sequential: cases share the bid
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.service.CancelBid(ctx, tc.bidID, tc.bidder)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, models.StatusCancelled, got.Status)
		})
	}
}

// Tests SetupAutoBid
func TestBiddingService_SetupAutoBid(t *testing.T) {
	ended := activeAuction("closed")
	ended.Status = models.AuctionEnded

	tests := []struct {
		name      string
		auctionID string
		bidderID  string
		max       int64
		increment int64
		wantErr   error
	}{
		{name: "valid_rule", auctionID: "a1", bidderID: "u1", max: 2000, increment: 100},
		{name: "missing_bidder", auctionID: "a1", bidderID: "", max: 2000, increment: 100, wantErr: biddingerrors.ErrInvalidBid},
		{name: "zero_increment", auctionID: "a1", bidderID: "u1", max: 2000, increment: 0, wantErr: biddingerrors.ErrInvalidBid},
		{name: "increment_below_auction_minimum", auctionID: "a1", bidderID: "u1", max: 2000, increment: 10, wantErr: biddingerrors.ErrBelowMinimum},
		{name: "max_not_above_current_price", auctionID: "a1", bidderID: "u1", max: 1000, increment: 100, wantErr: biddingerrors.ErrBelowMinimum},
		{name: "seller_rule", auctionID: "a1", bidderID: "seller", max: 2000, increment: 100, wantErr: biddingerrors.ErrSelfBid},
		{name: "ended_auction", auctionID: "closed", bidderID: "u1", max: 2000, increment: 100, wantErr: biddingerrors.ErrAuctionEnded},
		{name: "unknown_auction", auctionID: "missing", bidderID: "u1", max: 2000, increment: 100, wantErr: biddingerrors.ErrAuctionNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newServiceFixture()
			f.store.AddAuction(ended)

			rule, err := f.service.SetupAutoBid(context.Background(), tc.auctionID, tc.bidderID, decimal.NewFromInt(tc.max), decimal.NewFromInt(tc.increment))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, rule.Active)
			_, parseErr := uuid.Parse(rule.RuleID)
			require.NoError(t, parseErr)
		})
	}

	t.Run("second_setup_updates_first", func(t *testing.T) {
		f := newServiceFixture()
		ctx := context.Background()

		first, err := f.service.SetupAutoBid(ctx, "a1", "u1", decimal.NewFromInt(2000), decimal.NewFromInt(100))
		require.NoError(t, err)
		second, err := f.service.SetupAutoBid(ctx, "a1", "u1", decimal.NewFromInt(3000), decimal.NewFromInt(200))
		require.NoError(t, err)

		require.Equal(t, first.RuleID, second.RuleID)
		require.Len(t, f.repo.ListActiveAutoBidRules(), 1)
	})
}

// Tests the read-side queries
func TestBiddingService_Queries(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	bid, err := f.service.SubmitBid(ctx, submission("a1", "u1", 1100))
	require.NoError(t, err)

	got, err := f.service.GetBid(bid.BidID)
	require.NoError(t, err)
	require.Equal(t, bid.BidID, got.BidID)

	bids, err := f.service.GetBidsForAuction("a1")
	require.NoError(t, err)
	require.Len(t, bids, 1)

	userBids, err := f.service.GetBidsByUser("u1")
	require.NoError(t, err)
	require.Len(t, userBids, 1)

	_, err = f.service.GetWinningBid("a1")
	require.ErrorIs(t, err, biddingerrors.ErrNoBids, "pending bids do not win")

	snap, err := f.service.AuctionSnapshot(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", snap.AuctionID)

	emptyIDs := []func() error{
		func() error { _, err := f.service.GetBid(""); return err },
		func() error { _, err := f.service.GetBidsForAuction(""); return err },
		func() error { _, err := f.service.GetWinningBid(""); return err },
		func() error { _, err := f.service.GetBidsByUser(""); return err },
		func() error { _, err := f.service.AuctionSnapshot(ctx, ""); return err },
	}
	for i, call := range emptyIDs {
		require.True(t, errors.Is(call(), biddingerrors.ErrInvalidBid), fmt.Sprintf("query %d", i))
	}
}
