package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bidding-gateway/internal/auctionstate"
	"bidding-gateway/internal/auth"
	"bidding-gateway/internal/backoff"
	bidding "bidding-gateway/internal/biddingService"
	"bidding-gateway/internal/fanout"
	"bidding-gateway/internal/gateway"
	"bidding-gateway/internal/metrics"
	model "bidding-gateway/internal/models"
	"bidding-gateway/internal/pipeline"
	"bidding-gateway/internal/ratelimit"
	"bidding-gateway/internal/repository"
	"bidding-gateway/internal/rooms"
	"bidding-gateway/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testStack is one in-process instance with every component wired as in main
type testStack struct {
	router   *gin.Engine
	server   *httptest.Server
	verifier *auth.JWTVerifier
	store    *auctionstate.MemoryStore
	repo     *repository.MemoryRepo
	service  *bidding.BiddingService
	gateway  *gateway.Gateway
}

// SetupTestStack starts a full stack seeded with the given auctions; it is torn down with the test
func SetupTestStack(t *testing.T, auctions ...model.AuctionSnapshot) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	repo := repository.NewMemoryRepo()
	store := auctionstate.NewMemoryStore()
	for _, a := range auctions {
		store.AddAuction(a)
	}

	bridge := fanout.NewBridge("instance-test", fanout.NewLocalBus(), nil, m)
	rules := bidding.DefaultRules()
	rules.BurstThreshold = 100
	validator := bidding.NewValidator(store, repo, rules)

	pipe := pipeline.New(repo, store, validator, pipeline.NewMemoryQueue(64), bridge, pipeline.Options{
		InstanceID: "instance-test",
		Workers:    4,
		Retry:      backoff.Policy{Base: 5 * time.Millisecond, Max: 20 * time.Millisecond, MaxAttempts: 3},
		Sink:       pipeline.LogSink{},
		Metrics:    m,
	})
	pipe.Start(ctx)

	service := bidding.NewBiddingService(repo, store, validator, pipe)
	verifier := auth.NewJWTVerifier("integration-secret", time.Hour)
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassJoin:  {Limit: 100, Window: time.Minute},
		ratelimit.ClassEvent: {Limit: 1000, Window: time.Minute},
		ratelimit.ClassBid:   {Limit: 100, Window: time.Minute},
	}, nil)

	gw := gateway.New(verifier, service, rooms.NewRegistry(), limiter, m, gateway.Options{
		InstanceID: "instance-test",
		RoomGrace:  time.Second,
	})
	require.NoError(t, gw.Subscribe(bridge))

	router := server.SetupRouter(server.Dependencies{
		InstanceID: "instance-test",
		Service:    service,
		Verifier:   verifier,
		Limiter:    limiter,
		Gateway:    gw,
		WebSocket:  gateway.NewWSHandler(gw, nil, m),
		Gatherer:   reg,
		Metrics:    m,
	})
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		gw.Unsubscribe()
		cancel()
		pipe.Stop()
	})

	return &testStack{
		router:   router,
		server:   srv,
		verifier: verifier,
		store:    store,
		repo:     repo,
		service:  service,
		gateway:  gw,
	}
}

// ActiveAuction returns an auction open for bidding for the next hour
func ActiveAuction(id, sellerID string, startingPrice, increment int64) model.AuctionSnapshot {
	now := time.Now().UTC()
	return model.AuctionSnapshot{
		AuctionID:     id,
		Title:         "lot " + id,
		Status:        model.AuctionActive,
		SellerID:      sellerID,
		StartingPrice: decimal.NewFromInt(startingPrice),
		MinIncrement:  decimal.NewFromInt(increment),
		StartTime:     now.Add(-time.Minute),
		EndTime:       now.Add(time.Hour),
	}
}

// Token issues a bearer token for userID
func (s *testStack) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.verifier.Issue(userID, userID, "bidder")
	require.NoError(t, err)
	return token
}

// ExecuteRequestAndParse executes an HTTP request on the stack's router and parses the response
func (s *testStack) ExecuteRequestAndParse(t *testing.T, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// WaitForStatus blocks until the bid reaches a terminal status
func (s *testStack) WaitForStatus(t *testing.T, bidID string) model.Bid {
	t.Helper()

	var bid model.Bid
	require.Eventually(t, func() bool {
		var err error
		bid, err = s.repo.GetBid(bidID)
		return err == nil && bid.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return bid
}

// wsClient is a WebSocket session against the stack
type wsClient struct {
	conn *websocket.Conn
}

// Dial opens a WebSocket session for userID and consumes the authenticated event
func (s *testStack) Dial(t *testing.T, userID string) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + s.Token(t, userID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{conn: conn}
	require.Equal(t, gateway.OutAuthenticated, c.Next(t).Type)
	return c
}

// Send writes a client event
func (c *wsClient) Send(t *testing.T, eventType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteJSON(gateway.ClientEvent{Type: eventType, Data: raw}))
}

// Next reads the next server event
func (c *wsClient) Next(t *testing.T) gateway.OutboundEvent {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e gateway.OutboundEvent
	require.NoError(t, c.conn.ReadJSON(&e))
	return e
}

// Await reads events until one of the given type arrives
func (c *wsClient) Await(t *testing.T, eventType string) gateway.OutboundEvent {
	t.Helper()
	for {
		e := c.Next(t)
		if e.Type == eventType {
			return e
		}
	}
}
