package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"bidding-gateway/internal/auth"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/internal/ratelimit"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var errSendBufferFull = errors.New("send buffer full")

// WSHandler upgrades HTTP requests to WebSocket connections registered with a Gateway
type WSHandler struct {
	gateway   *Gateway
	handshake *ratelimit.HandshakeLimiter
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	logger    *log.Entry
}

// NewWSHandler creates the WebSocket endpoint. handshake may be nil to disable per-IP limits.
func NewWSHandler(g *Gateway, handshake *ratelimit.HandshakeLimiter, m *metrics.Metrics) *WSHandler {
	return &WSHandler{
		gateway:   g,
		handshake: handshake,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: g.logger.WithField("transport", "websocket"),
	}
}

// Sweep forgets handshake buckets that have been idle longer than idle
func (h *WSHandler) Sweep(now time.Time, idle time.Duration) int {
	if h.handshake == nil {
		return 0
	}
	return h.handshake.Sweep(now, idle)
}

// ServeHTTP authenticates the handshake, upgrades and runs the connection until it closes
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.handshake != nil && !h.handshake.Allow(ip) {
		h.metrics.ConnectionAttempt("throttled")
		http.Error(w, string(biddingerrors.ReasonRateLimited), http.StatusTooManyRequests)
		return
	}

	identity, err := h.gateway.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		h.metrics.ConnectionAttempt("rejected")
		http.Error(w, string(biddingerrors.ReasonUnauthenticated), http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.ConnectionAttempt("upgrade_failed")
		h.logger.WithError(err).WithField("ip", ip).Debug("websocket upgrade failed")
		return
	}
	h.metrics.ConnectionAttempt("accepted")

	sink := newWSSink()
	conn := h.gateway.Register(identity, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(ws, sink, conn.ID)
	}()

	h.readPump(ctx, ws, conn)
	h.gateway.Disconnect(conn, "closed")
	wg.Wait()
}

func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn *Connection) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).WithField("connection_id", conn.ID).Debug("websocket read failed")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var ev ClientEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.Type == "" {
			h.gateway.send(conn, errorEvent("", "", biddingerrors.ErrInvalidRequest, h.gateway.now()))
			continue
		}

		result := h.gateway.HandleClientEvent(ctx, conn, ev)
		if result.Reply.Type != "" {
			h.gateway.send(conn, result.Reply)
		}
	}
}

func (h *WSHandler) writePump(ws *websocket.Conn, sink *wsSink, connID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg := <-sink.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.WithError(err).WithField("connection_id", connID).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sink.done:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// wsSink queues encoded frames for the write pump without blocking the caller
type wsSink struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSink() *wsSink {
	return &wsSink{
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (s *wsSink) Send(e OutboundEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return net.ErrClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (s *wsSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, _ := strings.Cut(fwd, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
