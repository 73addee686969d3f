package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/backoff"
	bidding "bidding-gateway/internal/biddingService"
	"bidding-gateway/internal/fanout"
	model "bidding-gateway/internal/models"
	"bidding-gateway/internal/pipeline"
	repository "bidding-gateway/internal/repository"

	"github.com/shopspring/decimal"
)

// LoadScenario defines configurable benchmark parameters
type LoadScenario struct {
	Name            string
	NumUsers        int
	NumAuctions     int
	ReadRatio       int
	MaxBidIncrement int
	Workers         int
	Burst           bool // if true, no delay between ops
}

// OperationMetrics collects latencies safely
type OperationMetrics struct {
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(d time.Duration) {
	om.mu.Lock()
	om.latencies = append(om.latencies, d)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (min, max, avg, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	min = latencies[0]
	max = latencies[len(latencies)-1]

	var total time.Duration
	for _, d := range latencies {
		total += d
	}
	avg = total / time.Duration(len(latencies))
	p95 = latencies[int(0.95*float64(len(latencies)))]
	p99 = latencies[int(0.99*float64(len(latencies)))]
	return
}

// benchStack is the submission path with a running pipeline
type benchStack struct {
	repo    *repository.MemoryRepo
	store   *auctionstate.MemoryStore
	service *bidding.BiddingService
	stop    func()
}

// setupStack creates the repository, state store and pipeline with numAuctions active auctions
func setupStack(numAuctions, workers int) *benchStack {
	repo := repository.NewMemoryRepo()
	store := auctionstate.NewMemoryStore()
	now := time.Now()
	for i := 0; i < numAuctions; i++ {
		store.AddAuction(model.AuctionSnapshot{
			AuctionID:     fmt.Sprintf("auction_%d", i),
			Title:         fmt.Sprintf("title_%d", i),
			Status:        model.AuctionActive,
			SellerID:      "seller",
			StartingPrice: decimal.NewFromInt(100),
			MinIncrement:  decimal.NewFromInt(1),
			StartTime:     now.Add(-time.Minute),
			EndTime:       now.Add(time.Hour),
		})
	}

	rules := bidding.DefaultRules()
	rules.BurstThreshold = 1 << 30
	rules.MaxAcceptedPerAuction = 1 << 30
	validator := bidding.NewValidator(store, repo, rules)

	ctx, cancel := context.WithCancel(context.Background())
	pipe := pipeline.New(repo, store, validator, pipeline.NewMemoryQueue(1<<16), fanout.NewBridge("bench", fanout.NewLocalBus(), nil, nil), pipeline.Options{
		InstanceID: "bench",
		Workers:    workers,
		Retry:      backoff.Policy{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 3},
		Sink:       noopSink{},
	})
	pipe.Start(ctx)

	return &benchStack{
		repo:    repo,
		store:   store,
		service: bidding.NewBiddingService(repo, store, validator, pipe),
		stop: func() {
			cancel()
			pipe.Stop()
		},
	}
}

// drain waits until no bid is PENDING or PROCESSING
func (s *benchStack) drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(s.repo.ListBidsByStatus(model.StatusPending, model.StatusProcessing)) == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

type noopSink struct{}

func (noopSink) Notify(context.Context, pipeline.Outcome) {}

// Benchmark_Load_BiddingSystem runs multiple scenarios
func Benchmark_Load_BiddingSystem(b *testing.B) {
	scenarios := []LoadScenario{
		{"Low-Contention-WriteHeavy", 200, 200, 0, 50, 8, false},
		{"High-Contention-WriteHeavy", 500, 10, 0, 20, 8, false},
		{"Mixed-Workload", 300, 50, 7, 30, 8, false},
		{"ReadHeavy", 200, 50, 9, 20, 4, false},
		{"Edge-Case-SingleAuction", 100, 1, 5, 10, 8, false},
		{"Peak-Burst", 500, 50, 0, 20, 16, true},
	}

	for _, s := range scenarios {
		b.Run(s.Name, func(b *testing.B) {
			runParallelScenario(b, s)
		})
	}
}

func runParallelScenario(b *testing.B, s LoadScenario) {
	b.ReportAllocs()

	stack := setupStack(s.NumAuctions, s.Workers)
	defer stack.stop()

	var totalOps, queuedBids, refusedBids, totalReads int64
	metrics := &OperationMetrics{}

	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			auctionID := fmt.Sprintf("auction_%d", rnd.Intn(s.NumAuctions))
			opType := rnd.Intn(10)

			opStart := time.Now()
			if opType < s.ReadRatio {
				_, _ = stack.service.GetWinningBid(auctionID)
				atomic.AddInt64(&totalReads, 1)
			} else {
				snap, err := stack.store.GetAuctionSnapshot(context.Background(), auctionID)
				if err != nil {
					b.Fatalf("missing auction %s: %v", auctionID, err)
				}
				amount := snap.CurrentPrice.Add(decimal.NewFromInt(int64(1 + rnd.Intn(s.MaxBidIncrement))))
				_, err = stack.service.SubmitBid(context.Background(), model.BidSubmission{
					AuctionID:   auctionID,
					BidderID:    fmt.Sprintf("user_%d", rnd.Intn(s.NumUsers)),
					Amount:      amount,
					SubmittedAt: time.Now(),
					Origin:      model.OriginManual,
				})
				if err != nil {
					atomic.AddInt64(&refusedBids, 1)
				} else {
					atomic.AddInt64(&queuedBids, 1)
				}
			}

			metrics.Record(time.Since(opStart))
			atomic.AddInt64(&totalOps, 1)

			if !s.Burst {
				time.Sleep(time.Millisecond)
			}
		}
	})

	if !stack.drain(30 * time.Second) {
		b.Fatalf("pipeline did not drain")
	}

	elapsed := time.Since(start)
	throughput := float64(totalOps) / elapsed.Seconds()
	min, max, avg, p95, p99 := metrics.Stats()
	accepted := len(stack.repo.ListBidsByStatus(model.StatusAccepted))
	rejected := len(stack.repo.ListBidsByStatus(model.StatusRejected))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	b.Logf(
		"Scenario: %s | Auctions: %d | Total Ops: %d | Queued: %d | Refused: %d | Accepted: %d | Rejected: %d | Reads: %d | Elapsed: %s | Throughput: %.2f ops/sec | Latency(us) min: %.2f avg: %.2f max: %.2f p95: %.2f p99: %.2f | Memory Alloc: %.2f MB",
		s.Name, s.NumAuctions, totalOps, queuedBids, refusedBids, accepted, rejected, totalReads, elapsed,
		throughput,
		float64(min.Microseconds()), float64(avg.Microseconds()), float64(max.Microseconds()),
		float64(p95.Microseconds()), float64(p99.Microseconds()),
		float64(mem.Alloc)/1024/1024,
	)
}
