package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/host"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// WSCommandRate and WSCommandBurst limit inbound commands per
	// connection. Pointer streams run at display rate, so allow ~2 frames.
	WSCommandRate  = 120
	WSCommandBurst = 240

	wsWriteWait      = 2 * time.Second
	wsSubmitTimeout  = 2 * time.Second
	wsMaxMessageSize = 4096
)

// HubConfig configures a WebSocketHub.
type HubConfig struct {
	// Host receives inbound commands. Nil makes the socket read-only.
	Host HostInterface
	// Auth gates inbound commands; broadcasts are public.
	Auth *ControlAuth
	// Origins defaults to DefaultCORSOrigins.
	Origins []string
	// Prefs persists mode, intensity and star speed changes. Those
	// commands wait for their result when it is set.
	Prefs PrefsInterface
	// Motion receives reduced motion changes when set.
	Motion MotionInterface
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn       *websocket.Conn
	ip         string
	canControl bool
	limiter    *rate.Limiter
}

// WebSocketHub fans out state events and accepts engine commands.
// Only Run writes to connections.
type WebSocketHub struct {
	cfg        HubConfig
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once

	// Connection limiting per IP
	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub creates a hub. Call Run to start it.
func NewWebSocketHub(cfg HubConfig) *WebSocketHub {
	if cfg.Origins == nil {
		cfg.Origins = DefaultCORSOrigins
	}
	h := &WebSocketHub{
		cfg:        cfg,
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stopChan:   make(chan struct{}),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if OriginAllowed(origin, h.cfg.Origins) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run services registrations and broadcasts until Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for conn, client := range h.clients {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				conn.Close()
				h.wsLimiter.Release(client.ip)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				h.wsLimiter.Release(client.ip)
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn, client := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					h.wsLimiter.Release(client.ip)
					delete(h.clients, conn)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			UpdateWSConnections(count)
			IncrementWSMessages()
		}
	}
}

// Stop closes every connection and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// Broadcast queues an event for all clients. It drops the event when the
// queue is full.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop publishes "ambient:state" whenever the host has
// produced a new snapshot and "stream:stats" once a second. It also keeps
// the engine gauges current when nobody is connected.
func (h *WebSocketHub) StartBroadcastLoop(src HostInterface, streamer StreamerInterface) {
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		var lastSeq uint64
		ticks := 0
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
			}

			snap := src.Snapshot()
			UpdateEngineGauges(snap.Stats)

			if h.ClientCount() == 0 {
				continue
			}
			if snap.Sequence != lastSeq {
				lastSeq = snap.Sequence
				h.Broadcast("ambient:state", snap)
			}

			ticks++
			if streamer != nil && ticks%10 == 0 {
				h.Broadcast("stream:stats", streamer.GetStats())
			}
		}
	}()
}

// HandleWebSocket upgrades the request and reads commands until the
// client goes away.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if n := h.ClientCount(); n >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", n)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	// Authorization is decided at upgrade time, from the token or cookie.
	canControl := h.cfg.Host != nil && h.cfg.Auth.Authorized(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	client := &wsClient{
		conn:       conn,
		ip:         ip,
		canControl: canControl,
		limiter:    rate.NewLimiter(WSCommandRate, WSCommandBurst),
	}
	select {
	case h.register <- client:
	case <-h.stopChan:
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}

	go h.readLoop(client)
}

func (h *WebSocketHub) readLoop(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.stopChan:
		}
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(client, message)
	}
}

// handleMessage hands one command envelope to the host. Persisted
// settings wait for the engine's result; everything else is posted.
func (h *WebSocketHub) handleMessage(client *wsClient, message []byte) {
	if !client.canControl {
		RecordWSCommand("unauthorized")
		return
	}
	if !client.limiter.Allow() {
		RecordWSCommand("rate_limit")
		return
	}

	cmd, err := ambient.DecodeCommand(message)
	if err != nil {
		RecordWSCommand("invalid")
		return
	}

	switch c := cmd.(type) {
	case ambient.SetReducedMotion:
		if h.cfg.Motion != nil {
			h.cfg.Motion.Set(c.Reduced)
			RecordWSCommand("accepted")
			return
		}
	case ambient.SetMode, ambient.SetIntensity, ambient.SetStarSpeed:
		if h.cfg.Prefs != nil {
			ctx, cancel := context.WithTimeout(context.Background(), wsSubmitTimeout)
			res, err := h.cfg.Host.Submit(ctx, cmd)
			cancel()
			if err != nil {
				recordWSCommandError(err)
				return
			}
			persistApplied(h.cfg.Prefs, cmd, res)
			RecordWSCommand("accepted")
			return
		}
	}

	if err := h.cfg.Host.Post(cmd); err != nil {
		recordWSCommandError(err)
		return
	}
	RecordWSCommand("accepted")
}

func recordWSCommandError(err error) {
	if errors.Is(err, host.ErrQueueFull) {
		RecordWSCommand("queue_full")
	} else {
		RecordWSCommand("rejected")
	}
}
