// Hanoi game
//
// A single-player Tower of Hanoi, rendered in the browser and played over a
// WebSocket. The server owns the puzzle; the page only draws what it is sent.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - Every socket on a game ID drives the same session (reloads, hand-off)
// - Two-click moves, move counter, clock, win detection
// - Animated auto-solve from the current position, cancellable at any step
// - Disk count selectable between --min-disks and --max-disks
// - State frames pushed on every change, plus cue frames for move/win/restart
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to continue the game on another device, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/hanoi/games/hanoi"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// Commands per second a single socket may issue, and its burst.
	commandRate  = 20
	commandBurst = 40
)

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "select", "restart", "set_disks", "solve", "cancel_solve"
	Peg   *int   `json:"peg,omitempty"`   // select
	Disks int    `json:"disks,omitempty"` // set_disks
}

// StateMessage carries the full read model; it is sent on every change.
type StateMessage struct {
	Type string `json:"type"` // "state"
	hanoi.Snapshot
	MinDisks int `json:"min_disks"`
	MaxDisks int `json:"max_disks"`
}

// CueMessage asks the page to play an effect ("move", "win", "restart").
type CueMessage struct {
	Type string `json:"type"` // "cue"
	Cue  string `json:"cue"`
}

// SimpleMessage is for generic notifications ("error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id      string
	cfg     *Config
	session *hanoi.Session
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	done     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
	last       hanoi.Snapshot
}

func newHub(cfg *Config, gameID string) *Hub {
	now := time.Now()
	h := &Hub{
		id:         gameID,
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	h.session = hanoi.NewSession(hanoi.Options{
		Disks:     cfg.disks,
		StepDelay: cfg.solveDelay,
		Hooks: hanoi.Hooks{
			OnChange:      h.broadcastState,
			OnMoveApplied: h.moveApplied,
			OnWin:         h.won,
			OnRestart:     h.restarted,
			OnSolveEnd:    h.solveEnded,
		},
	})
	h.last = h.session.Snapshot()

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.mu.Unlock()

			clientsConnected.Inc()

			// Taken outside h.mu: session hooks lock h.mu while holding the
			// session lock. A frame broadcast in between carries a newer
			// version, which the page keeps.
			snap := h.session.Snapshot()

			h.mu.Lock()
			h.sendLocked(c, h.stateMessage(snap))
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				clientsConnected.Dec()
			}
			h.mu.Unlock()

		case cmd := <-h.commands:
			h.handleCommand(cmd)
		}
	}
}

func (h *Hub) stateMessage(snap hanoi.Snapshot) StateMessage {
	return StateMessage{
		Type:     "state",
		Snapshot: snap,
		MinDisks: h.cfg.minDisks,
		MaxDisks: h.cfg.maxDisks,
	}
}

// sendLocked queues msg for one client, dropping the client if its buffer is
// full. Assumes h.mu is held for writing.
func (h *Hub) sendLocked(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
		clientsConnected.Dec()
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// The hooks below run under the session lock and must not call into the
// session.

func (h *Hub) broadcastState(snap hanoi.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = snap
	h.broadcastLocked(h.stateMessage(snap))
}

func (h *Hub) moveApplied(m hanoi.Move) {
	h.mu.Lock()
	defer h.mu.Unlock()

	source := "manual"
	if h.last.Solving {
		source = "solver"
	}
	movesTotal.WithLabelValues(source).Inc()

	h.broadcastLocked(CueMessage{Type: "cue", Cue: "move"})
}

func (h *Hub) won(snap hanoi.Snapshot) {
	winsTotal.Inc()
	logf(h.cfg, "GAMES: Game %s solved with %d disks in %d moves (minimum %d) and %ds",
		h.id, snap.Disks, snap.Moves, snap.MinimumMoves, snap.Seconds)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(CueMessage{Type: "cue", Cue: "win"})
}

func (h *Hub) restarted(snap hanoi.Snapshot) {
	restartsTotal.Inc()
	logf(h.cfg, "GAMES: Game %s restarted with %d disks", h.id, snap.Disks)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(CueMessage{Type: "cue", Cue: "restart"})
}

func (h *Hub) solveEnded(reason hanoi.StopReason) {
	solvesTotal.WithLabelValues(string(reason)).Inc()
	logf(h.cfg, "GAMES: Auto-solve %s in %s", reason, h.id)
}

// handleCommand maps one client message onto the session.
func (h *Hub) handleCommand(cmd command) {
	c := cmd.client
	msg := cmd.msg

	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()

	switch msg.Type {
	case "select":
		if msg.Peg == nil || *msg.Peg < hanoi.Source || *msg.Peg > hanoi.Goal {
			return
		}
		h.session.SelectPeg(*msg.Peg)

	case "restart":
		h.session.Restart()

	case "set_disks":
		if msg.Disks < h.cfg.minDisks || msg.Disks > h.cfg.maxDisks {
			h.mu.Lock()
			h.sendLocked(c, SimpleMessage{
				Type:    "error",
				Message: fmt.Sprintf("Disk count must be between %d and %d.", h.cfg.minDisks, h.cfg.maxDisks),
			})
			h.mu.Unlock()
			return
		}
		_ = h.session.SetDiskCount(msg.Disks)

	case "solve":
		if h.session.AutoSolve() != nil {
			solvesTotal.WithLabelValues("started").Inc()
			logf(h.cfg, "GAMES: Auto-solve started in %s", h.id)
		}

	case "cancel_solve":
		h.session.CancelAutoSolve()

	default:
		// ignore unknown types
	}
}

// closeAll stops the session and disconnects all clients of this hub (used
// by the reaper and on shutdown).
func (h *Hub) closeAll() {
	h.once.Do(func() {
		close(h.done)
		h.session.Close()

		h.mu.Lock()
		defer h.mu.Unlock()

		for c := range h.clients {
			close(c.send)
			_ = c.conn.Close()
			delete(h.clients, c)
			clientsConnected.Dec()
		}
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(ctx context.Context, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}
	go func() {
		<-ctx.Done()
		gm.closeAll()
	}()
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(cfg, gameID)
	gm.hubs[gameID] = hub
	gamesActive.Inc()
	go hub.run()
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			gamesActive.Dec()
			logf(hub.cfg, "GAMES: Reaped idle game %s", id)
			go hub.closeAll()
		}
	}
}

func (gm *GameManager) closeAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		gamesActive.Dec()
		hub.closeAll()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, 32),
			limiter: rate.NewLimiter(commandRate, commandBurst),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: %s connected to %s", realIP(r), gameID)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			continue
		}

		select {
		case h.commands <- command{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/hanoi/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(data)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerHanoiGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerHanoiGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *GameManager {
	gm := newGameManager(ctx, cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, errs))

	mux.GET(cfg.prefix+"/assets/hanoi/*file", serveAssets(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	return gm
}
