package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/backoff"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/fanout"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/repository"
	"bidding-gateway/utils"

	log "github.com/sirupsen/logrus"
)

// Validator re-evaluates a bid against the auction state current at processing time
type Validator interface {
	Check(ctx context.Context, sub models.BidSubmission, excludeBidID string) (models.AuctionSnapshot, error)
}

// Publisher is the narrow fan-out surface used to announce outcomes
type Publisher interface {
	Publish(ctx context.Context, channel string, e fanout.Event) error
}

// Options configures a Pipeline
type Options struct {
	InstanceID string
	Workers    int
	Retry      backoff.Policy
	Sink       NotificationSink
	Metrics    *metrics.Metrics
}

// Pipeline turns queued submissions into terminal bid records. Bids for the same auction
// are processed one at a time; different auctions proceed in parallel.
type Pipeline struct {
	repo      repository.AuctionDB
	provider  auctionstate.Provider
	validator Validator
	queue     Queue
	publisher Publisher
	opts      Options
	logger    *log.Entry

	locks *keyedMutex
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a pipeline; call Start to launch the workers
func New(repo repository.AuctionDB, provider auctionstate.Provider, validator Validator, queue Queue, publisher Publisher, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{}
	}

	return &Pipeline{
		repo:      repo,
		provider:  provider,
		validator: validator,
		queue:     queue,
		publisher: publisher,
		opts:      opts,
		logger:    utils.Component("pipeline"),
		locks:     newKeyedMutex(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Enqueue records the submission as PENDING and queues it for processing
func (p *Pipeline) Enqueue(ctx context.Context, sub models.BidSubmission) (models.Bid, error) {
	placedAt := sub.SubmittedAt
	if placedAt.IsZero() {
		placedAt = p.now().UTC()
	}
	instanceID := sub.InstanceID
	if instanceID == "" {
		instanceID = p.opts.InstanceID
	}

	bid := models.Bid{
		BidID:        utils.GenerateID(),
		AuctionID:    sub.AuctionID,
		BidderID:     sub.BidderID,
		Amount:       sub.Amount,
		Status:       models.StatusPending,
		Origin:       sub.Origin,
		PlacedAt:     placedAt,
		ConnectionID: sub.ConnectionID,
		InstanceID:   instanceID,
	}
	if err := p.repo.CreateBid(bid); err != nil {
		return models.Bid{}, fmt.Errorf("pipeline: create bid record: %w", err)
	}

	if err := p.queue.Push(ctx, WorkItem{BidID: bid.BidID, AuctionID: bid.AuctionID}); err != nil {
		// the record stays PENDING and is picked up again by Recover
		return models.Bid{}, fmt.Errorf("pipeline: queue bid %s: %w", bid.BidID, err)
	}
	p.opts.Metrics.SetQueueDepth(p.queue.Len())

	p.logger.WithFields(log.Fields{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
		"origin":     bid.Origin,
	}).Debug("bid queued")
	return bid, nil
}

// Cancel withdraws a bid owned by bidderID while it is still PENDING
func (p *Pipeline) Cancel(ctx context.Context, bidID, bidderID string) (models.Bid, error) {
	bid, err := p.repo.GetBid(bidID)
	if err != nil {
		return models.Bid{}, err
	}
	if bid.BidderID != bidderID {
		return models.Bid{}, biddingerrors.NewValidationError(biddingerrors.ErrNotBidOwner, "")
	}

	processedAt := p.now().UTC()
	bid, err = p.repo.TransitionBid(bidID, models.StatusPending, models.StatusCancelled, func(b *models.Bid) {
		b.ProcessedAt = &processedAt
	})
	if err != nil {
		if errors.Is(err, biddingerrors.ErrInvalidTransition) {
			return models.Bid{}, biddingerrors.NewValidationError(biddingerrors.ErrCannotCancel, fmt.Sprintf("bid is %s", bid.Status))
		}
		return models.Bid{}, err
	}

	p.opts.Metrics.BidOutcome("cancelled", "")
	p.opts.Sink.Notify(ctx, Outcome{Bid: bid})
	utils.Info("bid cancelled", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
	})
	return bid, nil
}

// Start launches the worker pool. Workers exit when ctx is done or the queue is closed.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	p.logger.WithField("workers", p.opts.Workers).Info("bid pipeline started")
}

// Stop closes the queue and waits for in-flight work to finish
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		if err := p.queue.Close(); err != nil {
			p.logger.WithError(err).Warn("failed to close work queue")
		}
		p.wg.Wait()
		p.logger.Info("bid pipeline stopped")
	})
}

// Recover re-queues every record left PENDING or PROCESSING by a previous run
func (p *Pipeline) Recover(ctx context.Context) (int, error) {
	if r, ok := p.queue.(Recoverer); ok {
		moved, err := r.Recover(ctx)
		if err != nil {
			return 0, err
		}
		if moved > 0 {
			// durable queue already holds the in-flight items
			p.logger.WithField("items", moved).Info("recovered in-flight work items")
			return moved, nil
		}
		if p.queue.Len() > 0 {
			return 0, nil
		}
	}

	stale := p.repo.ListBidsByStatus(models.StatusPending, models.StatusProcessing)
	for _, bid := range stale {
		if err := p.queue.Push(ctx, WorkItem{BidID: bid.BidID, AuctionID: bid.AuctionID, Attempt: bid.Attempts}); err != nil {
			return 0, fmt.Errorf("pipeline: recover bid %s: %w", bid.BidID, err)
		}
	}
	if len(stale) > 0 {
		p.logger.WithField("bids", len(stale)).Info("re-queued unfinished bids")
	}
	return len(stale), nil
}

func (p *Pipeline) work(ctx context.Context, worker int) {
	logger := p.logger.WithField("worker", worker)
	for {
		item, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, biddingerrors.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("failed to pop work item")
			if err := p.sleep(ctx, time.Second); err != nil {
				return
			}
			continue
		}
		p.opts.Metrics.SetQueueDepth(p.queue.Len())

		done, known := p.handle(ctx, item)
		if !done {
			// interrupted by shutdown; leave the item unacknowledged for Recover
			return
		}
		if !known {
			continue
		}
		if err := p.queue.Ack(ctx, item); err != nil {
			logger.WithError(err).WithField("bid_id", item.BidID).Warn("failed to ack work item")
		}
	}
}

// process drives one bid to a terminal status. It returns false only when ctx ended first.
func (p *Pipeline) process(ctx context.Context, item WorkItem) bool {
	done, _ := p.handle(ctx, item)
	return done
}

// handle is process that also reports whether the item referenced a bid in this ledger.
// Unknown items are dead-lettered instead of acknowledged.
func (p *Pipeline) handle(ctx context.Context, item WorkItem) (done, known bool) {
	unlock := p.locks.Lock(item.AuctionID)
	defer unlock()

	started := p.now()
	logger := p.logger.WithFields(log.Fields{"bid_id": item.BidID, "auction_id": item.AuctionID})

	bid, err := p.repo.TransitionBid(item.BidID, models.StatusPending, models.StatusProcessing, nil)
	if err != nil {
		switch {
		case errors.Is(err, biddingerrors.ErrBidNotFound):
			p.deadLetter(ctx, item)
			return true, false
		case bid.Status == models.StatusProcessing:
			// resumed after a crash or a requeue; an earlier run may have written the price
			item.PriceWriteIssued = true
		case bid.Status.Terminal():
			logger.WithField("status", bid.Status).Debug("skipping bid in terminal status")
			return true, true
		default:
			logger.WithError(err).Error("failed to start processing")
			return true, true
		}
	}

	for {
		if ctx.Err() != nil {
			return false, true
		}

		item.Attempt++
		p.opts.Metrics.PipelineAttempt()

		err := p.attempt(ctx, bid, &item)
		if err == nil {
			p.opts.Metrics.ObserveProcessing(p.now().Sub(started))
			return true, true
		}

		if biddingerrors.IsValidation(err) {
			p.reject(ctx, bid, item, err)
			p.opts.Metrics.ObserveProcessing(p.now().Sub(started))
			return true, true
		}
		if ctx.Err() != nil {
			return false, true
		}

		if p.opts.Retry.Exhausted(item.Attempt) {
			logger.WithError(err).WithField("attempts", item.Attempt).Error("bid processing failed after retries")
			p.reject(ctx, bid, item, fmt.Errorf("%w: %w", biddingerrors.ErrInfrastructure, err))
			p.opts.Metrics.ObserveProcessing(p.now().Sub(started))
			return true, true
		}

		delay := p.opts.Retry.NextDelay(item.Attempt)
		attempts := item.Attempt
		if _, terr := p.repo.TransitionBid(bid.BidID, models.StatusProcessing, models.StatusProcessing, func(b *models.Bid) {
			b.Attempts = attempts
		}); terr != nil {
			logger.WithError(terr).Warn("failed to record retry attempt")
		}
		p.opts.Metrics.PipelineRetry()
		logger.WithError(err).WithFields(log.Fields{
			"attempt": item.Attempt,
			"delay":   delay.String(),
		}).Warn("bid processing failed, retrying")

		if err := p.sleep(ctx, delay); err != nil {
			return false, true
		}
	}
}

// attempt runs one pass of validate, price write, history and acceptance
func (p *Pipeline) attempt(ctx context.Context, bid models.Bid, item *WorkItem) error {
	if !item.PriceApplied && item.PriceWriteIssued && p.priceHeldBy(ctx, bid) {
		// the write from a failed earlier attempt landed
		item.PriceApplied = true
	}

	if !item.PriceApplied {
		snap, err := p.validator.Check(ctx, submissionOf(bid), bid.BidID)
		if err != nil {
			return err
		}
		item.PreviousPrice = snap.CurrentPrice
		item.PreviousBidderID = snap.HighestBidderID

		item.PriceWriteIssued = true
		if err := p.provider.SetCurrentPrice(ctx, bid.AuctionID, bid.Amount, bid.BidderID); err != nil {
			if !errors.Is(err, biddingerrors.ErrPriceConflict) {
				return err
			}
			if !p.priceHeldBy(ctx, bid) {
				return biddingerrors.NewValidationError(biddingerrors.ErrPriceConflict, "")
			}
		}
		item.PriceApplied = true
	}

	acceptedAt := p.now().UTC()
	if err := p.repo.AppendHistory(models.BidHistoryEntry{
		BidID:            bid.BidID,
		AuctionID:        bid.AuctionID,
		BidderID:         bid.BidderID,
		Amount:           bid.Amount,
		PreviousPrice:    item.PreviousPrice,
		PreviousBidderID: item.PreviousBidderID,
		AcceptedAt:       acceptedAt,
	}); err != nil {
		return fmt.Errorf("pipeline: append history for %s: %w", bid.BidID, err)
	}

	attempts := item.Attempt
	accepted, err := p.repo.TransitionBid(bid.BidID, models.StatusProcessing, models.StatusAccepted, func(b *models.Bid) {
		b.ProcessedAt = &acceptedAt
		b.Attempts = attempts
	})
	if err != nil {
		if accepted.Status == models.StatusAccepted {
			return nil
		}
		return fmt.Errorf("pipeline: accept %s: %w", bid.BidID, err)
	}

	p.publish(ctx, fanout.ChannelBidAccepted, accepted.AuctionID, fanout.BidAccepted{
		BidID:            accepted.BidID,
		BidderID:         accepted.BidderID,
		Amount:           accepted.Amount,
		PreviousPrice:    item.PreviousPrice,
		PreviousBidderID: item.PreviousBidderID,
		Origin:           string(accepted.Origin),
		ConnectionID:     accepted.ConnectionID,
		AcceptedAt:       acceptedAt,
	})
	p.opts.Metrics.BidOutcome("accepted", "")
	p.opts.Sink.Notify(ctx, Outcome{
		Bid:              accepted,
		PreviousPrice:    item.PreviousPrice,
		PreviousBidderID: item.PreviousBidderID,
	})

	utils.Info("bid accepted", map[string]any{
		"bid_id":     accepted.BidID,
		"auction_id": accepted.AuctionID,
		"bidder_id":  accepted.BidderID,
		"amount":     accepted.Amount.String(),
		"origin":     accepted.Origin,
		"attempts":   accepted.Attempts,
	})
	return nil
}

func (p *Pipeline) reject(ctx context.Context, bid models.Bid, item WorkItem, cause error) {
	reason := string(biddingerrors.ReasonOf(cause))
	detail := ""
	var verr *biddingerrors.ValidationError
	if errors.As(cause, &verr) {
		detail = verr.Detail
	}

	processedAt := p.now().UTC()
	attempts := item.Attempt
	rejected, err := p.repo.TransitionBid(bid.BidID, models.StatusProcessing, models.StatusRejected, func(b *models.Bid) {
		b.ProcessedAt = &processedAt
		b.FailureReason = reason
		b.Attempts = attempts
	})
	if err != nil {
		p.logger.WithError(err).WithField("bid_id", bid.BidID).Error("failed to record rejection")
		return
	}

	p.publish(ctx, fanout.ChannelBidRejected, rejected.AuctionID, fanout.BidRejected{
		BidID:        rejected.BidID,
		BidderID:     rejected.BidderID,
		Amount:       rejected.Amount,
		Reason:       reason,
		Detail:       detail,
		ConnectionID: rejected.ConnectionID,
	})
	p.opts.Metrics.BidOutcome("rejected", reason)
	p.opts.Sink.Notify(ctx, Outcome{Bid: rejected, Reason: reason})

	utils.Info("bid rejected", map[string]any{
		"bid_id":     rejected.BidID,
		"auction_id": rejected.AuctionID,
		"bidder_id":  rejected.BidderID,
		"amount":     rejected.Amount.String(),
		"reason":     reason,
	})
}

func (p *Pipeline) deadLetter(ctx context.Context, item WorkItem) {
	logger := p.logger.WithFields(log.Fields{"bid_id": item.BidID, "auction_id": item.AuctionID})
	p.opts.Metrics.DeadLetter()

	dl, ok := p.queue.(DeadLetterer)
	if !ok {
		logger.Error("work item references an unknown bid, dropping it")
		return
	}
	if err := dl.DeadLetter(ctx, item); err != nil {
		logger.WithError(err).Error("failed to dead-letter work item")
		return
	}
	logger.Error("work item references an unknown bid, moved to dead letters")
}

// priceHeldBy reports whether the leading price is this bid's own write. A different
// accepted bid at the same amount owns the price even when the bidder matches.
func (p *Pipeline) priceHeldBy(ctx context.Context, bid models.Bid) bool {
	snap, err := p.provider.GetAuctionSnapshot(ctx, bid.AuctionID)
	if err != nil {
		return false
	}
	if snap.HighestBidderID != bid.BidderID || !snap.CurrentPrice.Equal(bid.Amount) {
		return false
	}
	if leader, err := p.repo.GetWinningBid(bid.AuctionID); err == nil && leader.BidID != bid.BidID && leader.Amount.Equal(bid.Amount) {
		return false
	}
	return true
}

func (p *Pipeline) publish(ctx context.Context, channel, auctionID string, payload any) {
	if p.publisher == nil {
		return
	}
	e, err := fanout.NewEvent(channel, auctionID, payload)
	if err != nil {
		p.logger.WithError(err).Error("failed to build event")
		return
	}
	if err := p.publisher.Publish(ctx, channel, e); err != nil {
		p.logger.WithError(err).WithField("channel", channel).Warn("failed to publish event")
	}
}

func submissionOf(bid models.Bid) models.BidSubmission {
	return models.BidSubmission{
		AuctionID:    bid.AuctionID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount,
		SubmittedAt:  bid.PlacedAt,
		Origin:       bid.Origin,
		ConnectionID: bid.ConnectionID,
		InstanceID:   bid.InstanceID,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
