package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bidding-gateway/internal/biddingerrors"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps waiting items in a Redis list and moves each popped item to a
// processing list until it is acknowledged, so a crash never loses an in-flight bid
type RedisQueue struct {
	client     *redis.Client
	pending    string
	processing string
	dead       string
	popTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisClient parses url and verifies the server answers PING
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("pipeline: invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pipeline: failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue uses key for waiting items, key+":processing" for in-flight ones and
// key+":dead" for items no worker could process. Each instance needs its own key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		pending:    key,
		processing: key + ":processing",
		dead:       key + ":dead",
		popTimeout: time.Second,
		done:       make(chan struct{}),
	}
}

// Push implements Queue
func (q *RedisQueue) Push(ctx context.Context, item WorkItem) error {
	select {
	case <-q.done:
		return fmt.Errorf("pipeline: push %s: %w", item.BidID, biddingerrors.ErrQueueClosed)
	default:
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("pipeline: encode work item %s: %w", item.BidID, err)
	}
	if err := q.client.LPush(ctx, q.pending, data).Err(); err != nil {
		return fmt.Errorf("pipeline: push %s: %w: %w", item.BidID, biddingerrors.ErrInfrastructure, err)
	}
	return nil
}

// Pop implements Queue
func (q *RedisQueue) Pop(ctx context.Context) (WorkItem, error) {
	for {
		select {
		case <-q.done:
			return WorkItem{}, biddingerrors.ErrQueueClosed
		case <-ctx.Done():
			return WorkItem{}, ctx.Err()
		default:
		}

		raw, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.popTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return WorkItem{}, ctx.Err()
			}
			return WorkItem{}, fmt.Errorf("pipeline: pop: %w: %w", biddingerrors.ErrInfrastructure, err)
		}

		var item WorkItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			// poison message: drop it from the processing list
			_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
			return WorkItem{}, fmt.Errorf("pipeline: decode work item: %w", err)
		}
		item.raw = raw
		return item, nil
	}
}

// Ack implements Queue
func (q *RedisQueue) Ack(ctx context.Context, item WorkItem) error {
	if item.raw == "" {
		return nil
	}
	if err := q.client.LRem(ctx, q.processing, 1, item.raw).Err(); err != nil {
		return fmt.Errorf("pipeline: ack %s: %w: %w", item.BidID, biddingerrors.ErrInfrastructure, err)
	}
	return nil
}

// DeadLetter implements DeadLetterer; the item moves from the processing list to the dead list
func (q *RedisQueue) DeadLetter(ctx context.Context, item WorkItem) error {
	raw := item.raw
	if raw == "" {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("pipeline: encode work item %s: %w", item.BidID, err)
		}
		raw = string(data)
	}
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.dead, raw)
		pipe.LRem(ctx, q.processing, 1, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline: dead-letter %s: %w: %w", item.BidID, biddingerrors.ErrInfrastructure, err)
	}
	return nil
}

// Len implements Queue
func (q *RedisQueue) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n, err := q.client.LLen(ctx, q.pending).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Recover moves items left in the processing list by a previous run back to the
// consumer end of the pending list
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("pipeline: recover: %w: %w", biddingerrors.ErrInfrastructure, err)
		}
		moved++
	}
}

// Close implements Queue; the Redis client is owned by the caller
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
