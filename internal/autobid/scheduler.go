package autobid

import (
	"context"
	"errors"
	"time"

	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/repository"
	"bidding-gateway/internal/schedule"
	"bidding-gateway/utils"

	log "github.com/sirupsen/logrus"
)

// Actions recorded per rule and tick
const (
	ActionSubmitted   = "submitted"
	ActionSkipLeading = "skip_leading"
	ActionSkipNoBids  = "skip_no_bids"
	ActionSkipFailed  = "skip_failed"
	ActionDeactivated = "deactivated"
)

// Submitter is the ordinary bid submission path
type Submitter interface {
	SubmitBid(ctx context.Context, sub models.BidSubmission) (models.Bid, error)
}

// Scheduler places counter-bids on behalf of active auto-bid rules
type Scheduler struct {
	repo      repository.AuctionDB
	submitter Submitter
	metrics   *metrics.Metrics
	logger    *log.Entry
	now       func() time.Time
}

// NewScheduler creates a Scheduler
func NewScheduler(repo repository.AuctionDB, submitter Submitter, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		repo:      repo,
		submitter: submitter,
		metrics:   m,
		logger:    utils.Component("autobid"),
		now:       time.Now,
	}
}

// Start registers Tick on s with the given period
func (s *Scheduler) Start(sched schedule.Scheduler, interval time.Duration) {
	sched.Every(interval, func(ctx context.Context) { s.Tick(ctx) })
	s.logger.WithField("interval", interval.String()).Info("auto-bid scheduler started")
}

// Tick evaluates every active rule once and returns the action taken per rule id
func (s *Scheduler) Tick(ctx context.Context) map[string]string {
	rules := s.repo.ListActiveAutoBidRules()
	actions := make(map[string]string, len(rules))

	for _, rule := range rules {
		if ctx.Err() != nil {
			break
		}
		action := s.evaluate(ctx, rule)
		actions[rule.RuleID] = action
		s.metrics.AutoBid(action)
	}
	return actions
}

func (s *Scheduler) evaluate(ctx context.Context, rule models.AutoBidRule) string {
	logger := s.logger.WithFields(log.Fields{
		"rule_id":    rule.RuleID,
		"auction_id": rule.AuctionID,
		"bidder_id":  rule.BidderID,
	})

	winning, err := s.repo.GetWinningBid(rule.AuctionID)
	if err != nil {
		if !errors.Is(err, biddingerrors.ErrNoBids) {
			logger.WithError(err).Warn("failed to load winning bid")
			return ActionSkipFailed
		}
		return ActionSkipNoBids
	}
	if winning.BidderID == rule.BidderID {
		return ActionSkipLeading
	}

	next := winning.Amount.Add(rule.Increment)
	if next.GreaterThan(rule.MaxAmount) {
		if err := s.repo.DeactivateAutoBidRule(rule.RuleID); err != nil {
			logger.WithError(err).Warn("failed to deactivate auto-bid rule")
			return ActionSkipFailed
		}
		logger.WithFields(log.Fields{
			"next_amount": next.String(),
			"max_amount":  rule.MaxAmount.String(),
		}).Info("auto-bid rule reached its maximum")
		return ActionDeactivated
	}

	bid, err := s.submitter.SubmitBid(ctx, models.BidSubmission{
		AuctionID:   rule.AuctionID,
		BidderID:    rule.BidderID,
		Amount:      next,
		SubmittedAt: s.now().UTC(),
		Origin:      models.OriginAutomatic,
	})
	if err != nil {
		logger.WithError(err).WithField("amount", next.String()).Info("auto-bid skipped this cycle")
		return ActionSkipFailed
	}

	logger.WithFields(log.Fields{
		"bid_id": bid.BidID,
		"amount": next.String(),
	}).Info("auto-bid submitted")
	return ActionSubmitted
}
