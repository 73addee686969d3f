package lifecycle

import (
	"context"
	"sync"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/fanout"
	"bidding-gateway/internal/models"
	"bidding-gateway/internal/schedule"
	"bidding-gateway/utils"

	log "github.com/sirupsen/logrus"
)

// Store is what the watcher needs from the auction state provider
type Store interface {
	auctionstate.Lister
	auctionstate.StatusWriter
	GetAuctionSnapshot(ctx context.Context, auctionID string) (models.AuctionSnapshot, error)
}

// Publisher is the fan-out surface the watcher announces on
type Publisher interface {
	Publish(ctx context.Context, channel string, e fanout.Event) error
}

// Watcher moves auctions through their time-driven states and announces the changes
type Watcher struct {
	store       Store
	publisher   Publisher
	startingWin time.Duration
	logger      *log.Entry
	now         func() time.Time

	mu        sync.Mutex
	announced map[string]struct{} // key: channel/auctionID
}

// NewWatcher creates a Watcher; startingSoon is how far ahead auction.starting is announced
func NewWatcher(store Store, publisher Publisher, startingSoon time.Duration) *Watcher {
	return &Watcher{
		store:       store,
		publisher:   publisher,
		startingWin: startingSoon,
		logger:      utils.Component("lifecycle"),
		now:         time.Now,
		announced:   make(map[string]struct{}),
	}
}

// Start registers Tick on s with the given period
func (w *Watcher) Start(s schedule.Scheduler, interval time.Duration) {
	s.Every(interval, w.Tick)
}

// Tick runs one pass over all auctions
func (w *Watcher) Tick(ctx context.Context) {
	auctions, err := w.store.ListAuctions(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to list auctions")
		return
	}

	now := w.now()
	for _, a := range auctions {
		switch a.Status {
		case models.AuctionActive:
			if !now.Before(a.EndTime) {
				w.end(ctx, a, now)
			}
		case models.AuctionScheduled:
			switch {
			case !now.Before(a.StartTime):
				if err := w.store.SetStatus(ctx, a.AuctionID, models.AuctionActive); err != nil {
					w.logger.WithError(err).WithField("auction_id", a.AuctionID).Warn("failed to activate auction")
					continue
				}
				utils.Info("auction started", map[string]any{"auction_id": a.AuctionID})
			case a.StartTime.Sub(now) <= w.startingWin:
				w.announce(ctx, fanout.ChannelAuctionStarting, a.AuctionID, fanout.AuctionStarting{
					Title:     a.Title,
					StartTime: a.StartTime,
				})
			}
		}
	}
}

func (w *Watcher) end(ctx context.Context, a models.AuctionSnapshot, now time.Time) {
	if err := w.store.SetStatus(ctx, a.AuctionID, models.AuctionEnded); err != nil {
		w.logger.WithError(err).WithField("auction_id", a.AuctionID).Warn("failed to end auction")
		return
	}
	// the listed snapshot may predate an acceptance that landed before the status change
	if final, err := w.store.GetAuctionSnapshot(ctx, a.AuctionID); err == nil {
		a = final
	} else {
		w.logger.WithError(err).WithField("auction_id", a.AuctionID).Warn("failed to re-read ended auction, using listed state")
	}

	w.announce(ctx, fanout.ChannelAuctionEnded, a.AuctionID, fanout.AuctionEnded{
		FinalPrice: a.CurrentPrice,
		WinnerID:   a.HighestBidderID,
		EndedAt:    now.UTC(),
	})
	utils.Info("auction ended", map[string]any{
		"auction_id":  a.AuctionID,
		"final_price": a.CurrentPrice.String(),
		"winner_id":   a.HighestBidderID,
	})
}

// announce publishes an event at most once per channel and auction
func (w *Watcher) announce(ctx context.Context, channel, auctionID string, payload any) {
	key := channel + "/" + auctionID
	w.mu.Lock()
	if _, done := w.announced[key]; done {
		w.mu.Unlock()
		return
	}
	w.announced[key] = struct{}{}
	w.mu.Unlock()

	e, err := fanout.NewEvent(channel, auctionID, payload)
	if err != nil {
		w.logger.WithError(err).Error("failed to build event")
		return
	}
	if err := w.publisher.Publish(ctx, channel, e); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{"channel": channel, "auction_id": auctionID}).Warn("failed to publish")
	}
}
