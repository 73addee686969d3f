package autobid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/backoff"
	bidding "bidding-gateway/internal/biddingService"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/pipeline"
	"bidding-gateway/internal/repository"
	"bidding-gateway/internal/schedule"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []models.BidSubmission
	err  error
}

func (f *fakeSubmitter) SubmitBid(_ context.Context, sub models.BidSubmission) (models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Bid{}, f.err
	}
	f.subs = append(f.subs, sub)
	return models.Bid{BidID: "auto-1", AuctionID: sub.AuctionID, BidderID: sub.BidderID, Amount: sub.Amount, Status: models.StatusPending}, nil
}

// acceptBid writes an ACCEPTED record straight into the ledger
func acceptBid(t *testing.T, repo *repository.MemoryRepo, bidID, auctionID, bidderID string, amount int64) {
	t.Helper()
	require.NoError(t, repo.CreateBid(models.Bid{
		BidID:     bidID,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
		Status:    models.StatusPending,
		PlacedAt:  time.Now().UTC(),
	}))
	_, err := repo.TransitionBid(bidID, models.StatusPending, models.StatusProcessing, nil)
	require.NoError(t, err)
	_, err = repo.TransitionBid(bidID, models.StatusProcessing, models.StatusAccepted, nil)
	require.NoError(t, err)
}

func newRule(t *testing.T, repo *repository.MemoryRepo, bidderID string, max, increment int64) models.AutoBidRule {
	t.Helper()
	rule, err := repo.UpsertAutoBidRule(models.AutoBidRule{
		RuleID:    "rule-" + bidderID,
		AuctionID: "a1",
		BidderID:  bidderID,
		MaxAmount: decimal.NewFromInt(max),
		Increment: decimal.NewFromInt(increment),
	})
	require.NoError(t, err)
	return rule
}

func TestScheduler_Tick(t *testing.T) {
	testCases := []struct {
		name         string
		leader       string
		leaderAmount int64
		submitErr    error
		wantAction   string
		wantAmount   int64
		wantActive   bool
	}{
		{name: "no bids yet", wantAction: ActionSkipNoBids, wantActive: true},
		{name: "rule owner leads", leader: "carol", leaderAmount: 1500, wantAction: ActionSkipLeading, wantActive: true},
		{name: "counter-bid submitted", leader: "dave", leaderAmount: 1500, wantAction: ActionSubmitted, wantAmount: 1550, wantActive: true},
		{name: "next amount equals max", leader: "dave", leaderAmount: 1950, wantAction: ActionSubmitted, wantAmount: 2000, wantActive: true},
		{name: "next amount above max", leader: "dave", leaderAmount: 1980, wantAction: ActionDeactivated, wantActive: false},
		{name: "submission rejected", leader: "dave", leaderAmount: 1500, submitErr: biddingerrors.NewValidationError(biddingerrors.ErrBelowMinimum, ""), wantAction: ActionSkipFailed, wantActive: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := repository.NewMemoryRepo()
			rule := newRule(t, repo, "carol", 2000, 50)
			if tc.leader != "" {
				acceptBid(t, repo, "b-lead", "a1", tc.leader, tc.leaderAmount)
			}
			submitter := &fakeSubmitter{err: tc.submitErr}

			actions := NewScheduler(repo, submitter, nil).Tick(context.Background())
			require.Equal(t, tc.wantAction, actions[rule.RuleID])

			got, err := repo.GetAutoBidRule("a1", "carol")
			require.NoError(t, err)
			require.Equal(t, tc.wantActive, got.Active)

			if tc.wantAmount != 0 {
				require.Len(t, submitter.subs, 1)
				sub := submitter.subs[0]
				require.Equal(t, models.OriginAutomatic, sub.Origin)
				require.Equal(t, "carol", sub.BidderID)
				require.True(t, sub.Amount.Equal(decimal.NewFromInt(tc.wantAmount)))
			} else {
				require.Empty(t, submitter.subs)
			}
		})
	}
}

func TestScheduler_Tick_LedgerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMockAuctionDB(ctrl)
	repo.EXPECT().ListActiveAutoBidRules().Return([]models.AutoBidRule{{
		RuleID:    "r1",
		AuctionID: "a1",
		BidderID:  "carol",
		MaxAmount: decimal.NewFromInt(2000),
		Increment: decimal.NewFromInt(50),
		Active:    true,
	}})
	repo.EXPECT().GetWinningBid("a1").Return(models.Bid{}, errors.New("ledger offline"))

	submitter := &fakeSubmitter{}
	actions := NewScheduler(repo, submitter, nil).Tick(context.Background())
	require.Equal(t, ActionSkipFailed, actions["r1"])
	require.Empty(t, submitter.subs)
}

func TestScheduler_Start_RunsOnEveryTick(t *testing.T) {
	repo := repository.NewMemoryRepo()
	newRule(t, repo, "carol", 2000, 50)
	acceptBid(t, repo, "b-lead", "a1", "dave", 1500)

	submitter := &fakeSubmitter{}
	manual := schedule.NewManual()
	NewScheduler(repo, submitter, nil).Start(manual, 30*time.Second)

	require.Empty(t, submitter.subs)
	manual.Tick(context.Background())
	require.Len(t, submitter.subs, 1)
}

// TestScheduler_StopsAtMaximum drives a rule through the real submission path: a manual bid
// close to the maximum leaves no room for a counter-bid, so the rule is deactivated.
func TestScheduler_StopsAtMaximum(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := auctionstate.NewMemoryStore()
	store.AddAuction(models.AuctionSnapshot{
		AuctionID:     "a1",
		Status:        models.AuctionActive,
		SellerID:      "seller",
		StartingPrice: decimal.NewFromInt(1000),
		MinIncrement:  decimal.NewFromInt(50),
		StartTime:     time.Now().Add(-time.Hour),
		EndTime:       time.Now().Add(time.Hour),
	})
	repo := repository.NewMemoryRepo()
	validator := bidding.NewValidator(store, repo, bidding.DefaultRules())
	pipe := pipeline.New(repo, store, validator, pipeline.NewMemoryQueue(16), nil, pipeline.Options{
		Workers: 2,
		Retry:   backoff.Policy{Base: time.Millisecond, Max: time.Millisecond, MaxAttempts: 2},
	})
	pipe.Start(ctx)
	defer pipe.Stop()
	service := bidding.NewBiddingService(repo, store, validator, pipe)

	rule, err := service.SetupAutoBid(ctx, "a1", "carol", decimal.NewFromInt(2000), decimal.NewFromInt(50))
	require.NoError(t, err)

	manual, err := service.SubmitBid(ctx, models.BidSubmission{AuctionID: "a1", BidderID: "dave", Amount: decimal.NewFromInt(1980)})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		bid, err := repo.GetBid(manual.BidID)
		return err == nil && bid.Status == models.StatusAccepted
	}, 2*time.Second, 5*time.Millisecond)

	actions := NewScheduler(repo, service, nil).Tick(ctx)
	require.Equal(t, ActionDeactivated, actions[rule.RuleID])

	got, err := repo.GetAutoBidRule("a1", "carol")
	require.NoError(t, err)
	require.False(t, got.Active)

	bids, err := repo.GetBidsByUser("carol")
	require.ErrorIs(t, err, biddingerrors.ErrUserNoBids)
	require.Empty(t, bids)
}
