package pipeline

import (
	"context"
	"fmt"
	"sync"

	"bidding-gateway/internal/biddingerrors"

	"github.com/shopspring/decimal"
)

// WorkItem references a bid record awaiting processing. Retries reuse the same item.
type WorkItem struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	Attempt   int    `json:"attempt"`

	// PriceWriteIssued is set just before this item calls SetCurrentPrice. Only then may a
	// leading price equal to the bid be attributed to this item.
	PriceWriteIssued bool            `json:"price_write_issued"`
	// set once the price write has succeeded; later attempts only finish the acceptance
	PriceApplied     bool            `json:"price_applied"`
	PreviousPrice    decimal.Decimal `json:"previous_price"`
	PreviousBidderID string          `json:"previous_bidder_id,omitempty"`

	raw string
}

// Queue is the work queue between intake and the worker pool
type Queue interface {
	Push(ctx context.Context, item WorkItem) error
	// Pop blocks until an item is available, ctx is done or the queue is closed
	Pop(ctx context.Context) (WorkItem, error)
	Ack(ctx context.Context, item WorkItem) error
	Len() int
	Close() error
}

// Recoverer is implemented by queues that keep in-flight items across restarts
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// DeadLetterer is implemented by queues that can park an item no worker can process.
// A dead-lettered item needs no Ack.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, item WorkItem) error
}

// MemoryQueue is an in-process queue backed by a buffered channel
type MemoryQueue struct {
	items     chan WorkItem
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	dead []WorkItem
}

// NewMemoryQueue creates a queue holding up to size waiting items
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		items: make(chan WorkItem, size),
		done:  make(chan struct{}),
	}
}

// Push implements Queue
func (q *MemoryQueue) Push(ctx context.Context, item WorkItem) error {
	select {
	case <-q.done:
		return fmt.Errorf("pipeline: push %s: %w", item.BidID, biddingerrors.ErrQueueClosed)
	default:
	}

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return fmt.Errorf("pipeline: push %s: %w", item.BidID, biddingerrors.ErrQueueClosed)
	case <-ctx.Done():
		return fmt.Errorf("pipeline: push %s: %w", item.BidID, ctx.Err())
	}
}

// Pop implements Queue
func (q *MemoryQueue) Pop(ctx context.Context) (WorkItem, error) {
	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		return WorkItem{}, biddingerrors.ErrQueueClosed
	case <-ctx.Done():
		return WorkItem{}, ctx.Err()
	}
}

// Ack implements Queue; in-process items need no acknowledgement
func (q *MemoryQueue) Ack(context.Context, WorkItem) error {
	return nil
}

// DeadLetter implements DeadLetterer
func (q *MemoryQueue) DeadLetter(_ context.Context, item WorkItem) error {
	q.mu.Lock()
	q.dead = append(q.dead, item)
	q.mu.Unlock()
	return nil
}

// DeadLetters returns the parked items
func (q *MemoryQueue) DeadLetters() []WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]WorkItem(nil), q.dead...)
}

// Len implements Queue
func (q *MemoryQueue) Len() int {
	return len(q.items)
}

// Close implements Queue
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
