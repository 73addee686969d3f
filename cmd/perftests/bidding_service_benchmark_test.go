package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	bidding "bidding-gateway/internal/biddingService"
	model "bidding-gateway/internal/models"
	"bidding-gateway/internal/ratelimit"
	"bidding-gateway/internal/rooms"

	"github.com/shopspring/decimal"
)

// Benchmark 1: Validation - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_Validate_Isolated(b *testing.B) {
	stack := setupStack(1000, 1)
	defer stack.stop()
	validator := bidding.NewValidator(stack.store, stack.repo, bidding.DefaultRules())

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sub := model.BidSubmission{
			AuctionID:   fmt.Sprintf("auction_%d", i%1000),
			BidderID:    fmt.Sprintf("user_%d", i),
			Amount:      decimal.NewFromInt(int64(101 + rand.Intn(100))),
			SubmittedAt: time.Now(),
		}
		if err := validator.Validate(context.Background(), sub, ""); err != nil {
			b.Fatalf("failed to validate bid: %v", err)
		}
	}
}

// Benchmark 2: SubmitBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_SubmitBid_ConcurrentSharedAuction(b *testing.B) {
	stack := setupStack(1, 8)
	defer stack.stop()

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 100

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = stack.service.SubmitBid(context.Background(), model.BidSubmission{
				AuctionID:   "auction_0",
				BidderID:    fmt.Sprintf("user_parallel_%d", rnd.Int()),
				Amount:      decimal.NewFromInt(nextBid),
				SubmittedAt: time.Now(),
				Origin:      model.OriginManual,
			})
		}
	})
	b.StopTimer()

	if !stack.drain(30 * time.Second) {
		b.Fatalf("pipeline did not drain")
	}
}

// Benchmark 3: GetWinningBid - Concurrent (High Contention)
func Benchmark_GetWinningBid_ConcurrentSharedAuction(b *testing.B) {
	stack := setupStack(1, 4)
	defer stack.stop()

	for j := 1; j <= 100; j++ {
		_, _ = stack.service.SubmitBid(context.Background(), model.BidSubmission{
			AuctionID:   "auction_0",
			BidderID:    fmt.Sprintf("user_%d", j),
			Amount:      decimal.NewFromInt(int64(100 + j)),
			SubmittedAt: time.Now(),
			Origin:      model.OriginManual,
		})
	}
	if !stack.drain(10 * time.Second) {
		b.Fatalf("pipeline did not drain")
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := stack.service.GetWinningBid("auction_0"); err != nil {
				b.Errorf("failed to get winning bid: %v", err)
				return
			}
		}
	})
}

// Benchmark 4: Rate limiter - many identities, one class
func Benchmark_RateLimiter_Allow(b *testing.B) {
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassEvent: {Limit: 1 << 20, Window: time.Minute},
	}, nil)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			limiter.Allow(fmt.Sprintf("user_%d", rnd.Intn(1000)), ratelimit.ClassEvent)
		}
	})
}

// Benchmark 5: Room registry - mixed joins, leaves and member reads
func Benchmark_Rooms_MixedWorkload(b *testing.B) {
	registry := rooms.NewRegistry()

	b.ReportAllocs()
	b.ResetTimer()

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			auctionID := fmt.Sprintf("auction_%d", rnd.Intn(50))
			connID := fmt.Sprintf("conn_%d", rnd.Intn(5000))
			switch op := rnd.Intn(10); {
			case op < 2:
				registry.Join(auctionID, connID)
			case op < 3:
				registry.Leave(auctionID, connID)
			default:
				_ = registry.Members(auctionID)
			}
		}
	})
}
