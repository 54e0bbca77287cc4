package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/sxyu/cantus-chem/core/formula"
	"github.com/sxyu/cantus-chem/core/resolve"
	"github.com/sxyu/cantus-chem/internal/logging"
)

const (
	// maxLiveMessageSize caps inbound frame size in bytes.
	maxLiveMessageSize = 4096

	// liveMessageRate is the maximum resolve requests per second per session.
	liveMessageRate = 10

	livePongWait   = 60 * time.Second
	livePingPeriod = 54 * time.Second
	liveWriteWait  = 10 * time.Second
)

// LiveMessage is one frame sent to a live session. Type is "hello" on
// connect, then "result" or "error" per request frame.
type LiveMessage struct {
	Type      string          `json:"type"`
	Session   string          `json:"session"`
	Formula   string          `json:"formula,omitempty"`
	Result    *resolve.Result `json:"result,omitempty"`
	Error     *APIError       `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// liveSession is one WebSocket connection resolving formulas interactively.
type liveSession struct {
	server *Server
	conn   *websocket.Conn
	id     string
	send   chan []byte
	rate   *messageRateBucket
}

// sessionTracker counts active live sessions.
type sessionTracker struct {
	mu    sync.Mutex
	count int
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{}
}

func (t *sessionTracker) add() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	return t.count
}

func (t *sessionTracker) remove() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count--
	return t.count
}

func (t *sessionTracker) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// messageRateBucket implements a token bucket for per-session message
// rate limiting.
type messageRateBucket struct {
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

func newMessageRateBucket(messagesPerSecond int) *messageRateBucket {
	capacity := float64(messagesPerSecond) * 2.0 // Allow burst of 2x
	return &messageRateBucket{
		tokens:         capacity,
		capacity:       capacity,
		refillRate:     float64(messagesPerSecond),
		lastRefillTime: time.Now(),
	}
}

// allow checks if a message can be allowed (returns true if token available).
func (mb *messageRateBucket) allow() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(mb.lastRefillTime).Seconds()

	mb.tokens = min(mb.capacity, mb.tokens+elapsed*mb.refillRate)
	mb.lastRefillTime = now

	if mb.tokens >= 1.0 {
		mb.tokens--
		return true
	}
	return false
}

// isOriginAllowed checks if the origin is in the allowed list.
// Supports exact matches, wildcard "*", and wildcard subdomains.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Non-browser clients send no Origin header; let them through.
	if origin == "" {
		return true
	}

	if len(allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}
		if origin == allowed {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			domain := allowed[2:]
			if strings.HasSuffix(origin, domain) {
				return true
			}
		}
	}

	return false
}

// handleLive upgrades the connection and runs an interactive resolve
// session. Each inbound frame is a ResolveRequest; each outbound frame
// is a LiveMessage carrying the result or the error.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := isOriginAllowed(origin, s.cfg.AllowedOrigins)
			if !allowed {
				logging.Warn("websocket origin rejected", "origin", origin)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	session := &liveSession{
		server: s,
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan []byte, 256),
	}
	session.rate = newMessageRateBucket(liveMessageRate)

	logging.WebSocketEvent("session_connected", s.sessions.add())

	session.enqueue(LiveMessage{Type: "hello", Session: session.id})

	go session.writePump()
	session.readPump()
}

// enqueue marshals a message onto the send channel, dropping it if the
// session cannot keep up.
func (ls *liveSession) enqueue(msg LiveMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if msg.Session == "" {
		msg.Session = ls.id
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal live message", "error", err)
		return
	}

	select {
	case ls.send <- data:
	default:
		logging.Warn("live session send buffer full, dropping message", "session", ls.id)
	}
}

// readPump reads request frames, resolves them, and queues responses.
func (ls *liveSession) readPump() {
	defer func() {
		close(ls.send)
		ls.conn.Close()
		logging.WebSocketEvent("session_disconnected", ls.server.sessions.remove())
	}()

	ls.conn.SetReadLimit(maxLiveMessageSize)
	ls.conn.SetReadDeadline(time.Now().Add(livePongWait))
	ls.conn.SetPongHandler(func(string) error {
		ls.conn.SetReadDeadline(time.Now().Add(livePongWait))
		return nil
	})

	for {
		_, data, err := ls.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Error("websocket unexpected close", "session", ls.id, "error", err)
			}
			return
		}

		if !ls.rate.allow() {
			ls.enqueue(LiveMessage{
				Type:  "error",
				Error: &APIError{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests, slow down"},
			})
			continue
		}

		var req ResolveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ls.enqueue(LiveMessage{
				Type:  "error",
				Error: &APIError{Code: "INVALID_REQUEST", Message: "Invalid JSON frame"},
			})
			continue
		}

		ls.resolveFrame(req)
	}
}

// resolveFrame runs one resolve request and queues the response frame.
func (ls *liveSession) resolveFrame(req ResolveRequest) {
	opts := resolve.Options{
		Ions:          req.Ions,
		DecomposeIons: req.Decompose,
		ChargeHints:   req.Hints,
	}

	result, _, err := ls.server.resolver.Resolve(req.Formula, opts)
	if err != nil {
		code := "RESOLVE_FAILED"
		var perr *formula.ParseError
		if errors.As(err, &perr) {
			code = parseErrorCode(perr)
		}
		ls.enqueue(LiveMessage{
			Type:    "error",
			Formula: req.Formula,
			Error:   &APIError{Code: code, Message: err.Error()},
		})
		return
	}

	ls.enqueue(LiveMessage{
		Type:    "result",
		Formula: result.Formula,
		Result:  result,
	})
}

// writePump writes queued frames and keeps the connection alive with pings.
func (ls *liveSession) writePump() {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		ls.conn.Close()
	}()

	for {
		select {
		case message, ok := <-ls.send:
			ls.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				ls.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := ls.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any additional queued messages
			n := len(ls.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-ls.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			ls.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := ls.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
