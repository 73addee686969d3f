package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/auth"
	"bidding-gateway/internal/autobid"
	"bidding-gateway/internal/backoff"
	bidding "bidding-gateway/internal/biddingService"
	"bidding-gateway/internal/config"
	"bidding-gateway/internal/fanout"
	"bidding-gateway/internal/gateway"
	"bidding-gateway/internal/lifecycle"
	"bidding-gateway/internal/metrics"
	model "bidding-gateway/internal/models"
	"bidding-gateway/internal/pipeline"
	"bidding-gateway/internal/ratelimit"
	"bidding-gateway/internal/repository"
	"bidding-gateway/internal/rooms"
	"bidding-gateway/internal/schedule"
	"bidding-gateway/internal/server"
	"bidding-gateway/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	_ "go.uber.org/automaxprocs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	utils.ConfigureLogger(cfg.LogLevel, cfg.LogFormat)
	utils.Info("configuration loaded", cfg.LogFields())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo := repository.NewMemoryRepo()
	store := auctionstate.NewMemoryStore()
	if cfg.SeedDemo {
		seedAuctions(store)
	}
	provider := auctionstate.NewRetrying(store, cfg.ProviderTimeout, backoff.Policy{
		Base:        50 * time.Millisecond,
		Max:         cfg.ProviderTimeout,
		MaxAttempts: cfg.ProviderMaxAttempts,
	})

	bridge, closeBus, err := setupFanout(cfg, m)
	if err != nil {
		utils.Fatal("failed to set up fan-out", map[string]any{"error": err.Error()})
	}
	defer closeBus()

	queue, closeQueue, err := setupQueue(ctx, cfg)
	if err != nil {
		utils.Fatal("failed to set up bid queue", map[string]any{"error": err.Error()})
	}
	defer closeQueue()

	validator := bidding.NewValidator(provider, repo, bidding.Rules{
		Ceiling:               decimal.NewFromFloat(cfg.BidCeiling),
		MaxAcceptedPerAuction: cfg.BidMaxPerAuction,
		BurstThreshold:        cfg.BidBurstThreshold,
		BurstWindow:           cfg.BidBurstWindow,
	})

	pipe := pipeline.New(repo, provider, validator, queue, bridge, pipeline.Options{
		InstanceID: cfg.InstanceID,
		Workers:    cfg.PipelineWorkers,
		Retry: backoff.Policy{
			Base:        cfg.PipelineBaseDelay,
			Max:         cfg.PipelineMaxDelay,
			MaxAttempts: cfg.PipelineMaxAttempts,
		},
		Sink:    pipeline.LogSink{},
		Metrics: m,
	})
	if n, err := pipe.Recover(ctx); err != nil {
		utils.Error("failed to recover in-flight bids", map[string]any{"error": err.Error()})
	} else if n > 0 {
		utils.Info("recovered in-flight bids", map[string]any{"count": n})
	}
	pipe.Start(ctx)

	biddingSvc := bidding.NewBiddingService(repo, provider, validator, pipe)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, cfg.TokenExpiration)
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassJoin:  {Limit: cfg.RateJoinLimit, Window: cfg.RateWindow},
		ratelimit.ClassEvent: {Limit: cfg.RateEventLimit, Window: cfg.RateWindow},
		ratelimit.ClassBid:   {Limit: cfg.RateBidLimit, Window: cfg.RateWindow},
	}, nil)
	handshake := ratelimit.NewHandshakeLimiter(cfg.HandshakeIPRate, cfg.HandshakeIPBurst, nil)

	gw := gateway.New(verifier, biddingSvc, rooms.NewRegistry(), limiter, m, gateway.Options{
		InstanceID:  cfg.InstanceID,
		Permissive:  cfg.AuthPermissive,
		AuthTimeout: cfg.AuthTimeout,
		IdleTimeout: cfg.IdleTimeout,
		RoomGrace:   cfg.RoomGrace,
	})
	if err := gw.Subscribe(bridge); err != nil {
		utils.Fatal("failed to subscribe gateway to fan-out", map[string]any{"error": err.Error()})
	}
	defer gw.Unsubscribe()
	if err := bridge.Start(fanout.Channels...); err != nil {
		utils.Fatal("failed to start cross-instance relay", map[string]any{"error": err.Error()})
	}
	defer bridge.Close()
	wsHandler := gateway.NewWSHandler(gw, handshake, m)

	jobs := schedule.NewTicker(ctx)
	autobid.NewScheduler(repo, biddingSvc, m).Start(jobs, cfg.AutoBidInterval)
	lifecycle.NewWatcher(store, bridge, cfg.StartingSoonWindow).Start(jobs, cfg.LifecycleInterval)
	gw.Start(jobs, cfg.SweepInterval)
	jobs.Every(cfg.SweepInterval, func(context.Context) {
		if n := wsHandler.Sweep(time.Now(), cfg.IdleTimeout); n > 0 {
			utils.Debug("handshake limiter swept", map[string]any{"removed": n})
		}
	})

	if cfg.SeedDemo {
		logDemoTokens(verifier)
	}

	router := server.SetupRouter(server.Dependencies{
		InstanceID:  cfg.InstanceID,
		Service:     biddingSvc,
		Verifier:    verifier,
		AuthTimeout: cfg.AuthTimeout,
		Limiter:     limiter,
		Gateway:     gw,
		WebSocket:   wsHandler,
		Gatherer:    reg,
		Metrics:     m,
		QueueDepth:  queue.Len,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting bidding gateway", map[string]any{"addr": cfg.HTTPAddr, "instance_id": cfg.InstanceID})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("http server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Warn("http server shutdown incomplete", map[string]any{"error": err.Error()})
	}
	jobs.Stop()
	pipe.Stop()
	utils.Info("shutdown complete", nil)
}

// setupFanout builds the bridge, adding the NATS transport when configured
func setupFanout(cfg *config.Config, m *metrics.Metrics) (*fanout.Bridge, func(), error) {
	if cfg.NATSURL == "" {
		return fanout.NewBridge(cfg.InstanceID, fanout.NewLocalBus(), nil, m), func() {}, nil
	}

	bus, err := fanout.NewNATSBus(fanout.NATSConfig{
		URL:           cfg.NATSURL,
		SubjectPrefix: cfg.NATSSubjectPrefix,
		Name:          cfg.InstanceID,
	}, m)
	if err != nil {
		return nil, nil, err
	}
	return fanout.NewBridge(cfg.InstanceID, fanout.NewLocalBus(), bus, m), bus.Close, nil
}

// setupQueue returns the Redis-backed queue when REDIS_URL is set, else the in-process one
func setupQueue(ctx context.Context, cfg *config.Config) (pipeline.Queue, func(), error) {
	if cfg.RedisURL == "" {
		return pipeline.NewMemoryQueue(cfg.QueueBuffer), func() {}, nil
	}

	client, err := pipeline.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			utils.Warn("failed to close redis client", map[string]any{"error": err.Error()})
		}
	}
	return pipeline.NewRedisQueue(client, cfg.WorkQueueKey()), closeClient, nil
}

// seedAuctions adds sample auctions to the in-memory state store
func seedAuctions(store *auctionstate.MemoryStore) {
	now := time.Now().UTC()
	auctions := []model.AuctionSnapshot{
		{
			AuctionID:     "auction1",
			Title:         "Vintage camera",
			Status:        model.AuctionActive,
			SellerID:      "seller1",
			StartingPrice: decimal.NewFromInt(100),
			MinIncrement:  decimal.NewFromInt(5),
			StartTime:     now.Add(-time.Hour),
			EndTime:       now.Add(2 * time.Hour),
		},
		{
			AuctionID:     "auction2",
			Title:         "Mechanical watch",
			Status:        model.AuctionActive,
			SellerID:      "seller2",
			StartingPrice: decimal.NewFromInt(1000),
			MinIncrement:  decimal.NewFromInt(50),
			StartTime:     now.Add(-10 * time.Minute),
			EndTime:       now.Add(30 * time.Minute),
		},
		{
			AuctionID:     "auction3",
			Title:         "First edition novel",
			Status:        model.AuctionScheduled,
			SellerID:      "seller1",
			StartingPrice: decimal.NewFromInt(150),
			MinIncrement:  decimal.NewFromInt(10),
			StartTime:     now.Add(3 * time.Minute),
			EndTime:       now.Add(time.Hour),
		},
	}

	for _, a := range auctions {
		store.AddAuction(a)
	}
	utils.Info("seeded demo auctions", map[string]any{"count": len(auctions)})
}

// logDemoTokens prints bearer tokens for the demo bidders
func logDemoTokens(verifier *auth.JWTVerifier) {
	for _, user := range []string{"user1", "user2", "user3"} {
		token, err := verifier.Issue(user, user, "bidder")
		if err != nil {
			utils.Warn("failed to issue demo token", map[string]any{"user_id": user, "error": err.Error()})
			continue
		}
		utils.Info("demo token issued", map[string]any{"user_id": user, "token": token})
	}
}
