// feudbox survey board
//
// One moderator runs the board; everyone else connected to the same game ID
// watches it. The moderator's browser sends commands over a websocket, the
// hub applies them to its game state and pushes a fresh snapshot to every
// client.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - First connection to a game becomes moderator
// - Moderator sees every answer; display clients only see revealed ones
// - Steal guesses stay hidden from displays until confirmed
// - Steal outcomes stay on the board for --steal-delay before the next round
// - Typed guesses are matched against hidden answers for the moderator
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/feudbox/games/feud"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type   string `json:"type"`             // see parseCommand, plus "new_game" and "guess"
	Team   string `json:"team,omitempty"`   // face_off / confirm_steal / end_round
	Choice string `json:"choice,omitempty"` // decide
	Index  *int   `json:"index,omitempty"`  // reveal / select_steal
	Text   string `json:"text,omitempty"`   // guess
}

// SessionInfoMessage is sent immediately on connect so the client knows
// which role this cookie has.
type SessionInfoMessage struct {
	Type        string `json:"type"` // "session_info"
	GameID      string `json:"game_id"`
	IsModerator bool   `json:"is_moderator"`
}

// GameStateMessage carries the board snapshot after every change.
type GameStateMessage struct {
	Type  string    `json:"type"` // "game_state"
	State feud.View `json:"state"`
}

// RejectedMessage tells the moderator a command was refused. Nothing changed.
type RejectedMessage struct {
	Type    string `json:"type"` // "rejected"
	Command string `json:"command"`
	Message string `json:"message"`
}

// SuggestionMessage answers a typed guess with the closest hidden answer.
type SuggestionMessage struct {
	Type  string `json:"type"` // "suggestion"
	Guess string `json:"guess"`
	Found bool   `json:"found"`
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
}

// GameOverMessage is broadcast once, when the last round ends.
type GameOverMessage struct {
	Type   string      `json:"type"` // "game_over"
	Scores feud.Scores `json:"scores"`
	Winner feud.Team   `json:"winner,omitempty"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type commandRequest struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id      string
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan commandRequest
	fires    chan uint64
	quit     chan struct{}
	closed   sync.Once

	mu sync.RWMutex

	createdAt         time.Time
	lastActive        time.Time
	moderatorPlayerID string

	rounds     []feud.Round
	state      feud.GameState
	generation uint64 // bumped on new_game so stale advance timers are ignored
	stealDelay time.Duration
}

func newHub(cfg *Config, gameID string, rounds []feud.Round) (*Hub, error) {
	state, err := feud.New(rounds)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan commandRequest),
		fires:      make(chan uint64),
		quit:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
		rounds:     rounds,
		state:      state,
		stealDelay: cfg.stealDelay,
	}, nil
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case <-h.quit:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()

			// First connection becomes moderator
			if h.moderatorPlayerID == "" {
				h.moderatorPlayerID = c.playerID
				logf(cfg, "GAMES: Moderator joined %s", h.id)
			}

			h.clients[c] = true

			h.sendLocked(c, SessionInfoMessage{
				Type:        "session_info",
				GameID:      h.id,
				IsModerator: h.isModerator(c),
			})
			h.sendLocked(c, h.stateMessage(c))

			if h.state.Over() {
				h.sendLocked(c, h.gameOverMessage())
			}

			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case req := <-h.commands:
			h.handleCommand(cfg, req)

		case gen := <-h.fires:
			h.handleFire(cfg, gen)
		}
	}
}

func (h *Hub) isModerator(c *Client) bool {
	return h.moderatorPlayerID != "" && c.playerID == h.moderatorPlayerID
}

func (h *Hub) stateMessage(c *Client) GameStateMessage {
	return GameStateMessage{
		Type:  "game_state",
		State: feud.NewView(h.state, h.isModerator(c)),
	}
}

func (h *Hub) gameOverMessage() GameOverMessage {
	msg := GameOverMessage{Type: "game_over"}
	if h.state.Result != nil {
		msg.Scores = h.state.Result.Scores
		msg.Winner = h.state.Result.Winner
	}

	return msg
}

// sendLocked queues msg for c, dropping the client if its buffer is full.
// Assumes h.mu is held.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcastStateLocked sends every client the view it is allowed to see.
func (h *Hub) broadcastStateLocked() {
	for client := range h.clients {
		h.sendLocked(client, h.stateMessage(client))
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

func (h *Hub) rejectLocked(c *Client, command string, err error) {
	h.sendLocked(c, RejectedMessage{
		Type:    "rejected",
		Command: command,
		Message: err.Error(),
	})
}

var errNotModerator = errors.New("only the moderator can run the board")

// parseCommand maps a client message onto an engine command.
func parseCommand(msg ClientMessage) (feud.Command, error) {
	index := func() (int, error) {
		if msg.Index == nil {
			return 0, errors.New("missing answer index")
		}
		return *msg.Index, nil
	}

	switch msg.Type {
	case "face_off":
		team, err := feud.ParseTeam(msg.Team)
		if err != nil {
			return nil, err
		}
		return feud.DeclareFaceOffWinner{Team: team}, nil

	case "decide":
		return feud.DecideControl{Choice: feud.Choice(strings.ToLower(msg.Choice))}, nil

	case "reveal":
		i, err := index()
		if err != nil {
			return nil, err
		}
		return feud.RevealAnswer{Index: i}, nil

	case "strike":
		return feud.RecordStrike{}, nil

	case "select_steal":
		i, err := index()
		if err != nil {
			return nil, err
		}
		return feud.SelectStealCandidate{Index: i}, nil

	case "confirm_steal":
		team, err := feud.ParseTeam(msg.Team)
		if err != nil {
			return nil, err
		}
		return feud.ConfirmSteal{Team: team}, nil

	case "fail_steal":
		return feud.FailSteal{}, nil

	case "end_round":
		team, err := feud.ParseTeam(msg.Team)
		if err != nil {
			return nil, err
		}
		return feud.EndRound{Team: team}, nil

	case "skip_round":
		return feud.SkipRound{}, nil
	}

	return nil, fmt.Errorf("%w: %q", feud.ErrUnknownCommand, msg.Type)
}

// handleCommand applies one moderator command to the hub's game.
func (h *Hub) handleCommand(cfg *Config, req commandRequest) {
	c := req.client
	msg := req.msg

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if !h.isModerator(c) {
		h.rejectLocked(c, msg.Type, errNotModerator)
		return
	}

	switch msg.Type {
	case "new_game":
		state, err := feud.New(h.rounds)
		if err != nil {
			h.rejectLocked(c, msg.Type, err)
			return
		}

		h.state = state
		h.generation++
		logf(cfg, "GAMES: New game started in %s", h.id)

		h.broadcastStateLocked()
		return

	case "guess":
		index, found := feud.Match(h.state, msg.Text)

		suggestion := SuggestionMessage{
			Type:  "suggestion",
			Guess: msg.Text,
			Found: found,
			Index: index,
		}
		if found {
			suggestion.Label = h.state.Slots[index].Label
		}

		h.sendLocked(c, suggestion)
		return
	}

	cmd, err := parseCommand(msg)
	if err != nil {
		h.rejectLocked(c, msg.Type, err)
		return
	}

	h.applyLocked(cfg, c, msg.Type, cmd)
}

// applyLocked runs cmd and publishes the result. Assumes h.mu is held.
func (h *Hub) applyLocked(cfg *Config, c *Client, name string, cmd feud.Command) {
	prev := h.state

	next, err := feud.Apply(prev, cmd)
	if err != nil {
		logf(cfg, "GAMES: Rejected %s in %s: %v", name, h.id, err)
		if c != nil {
			h.rejectLocked(c, name, err)
		}
		return
	}

	if next.Pending != nil && prev.Pending == nil {
		next.Pending.Delay = h.stealDelay
		h.scheduleAdvance(next.Pending.Delay)

		logf(cfg, "GAMES: %s awards %d to %s in %s, next round in %s",
			next.Pending.Reason, next.Pending.Points, next.Pending.Team, h.id, next.Pending.Delay)
	}

	if next.RoundIndex != prev.RoundIndex {
		logf(cfg, "GAMES: Round %d of %d in %s (score %d-%d)",
			next.RoundIndex+1, len(next.Rounds), h.id, next.Scores.A, next.Scores.B)
	}

	h.state = next

	h.broadcastStateLocked()

	if next.Over() && !prev.Over() {
		logf(cfg, "GAMES: Game over in %s (score %d-%d)", h.id, next.Result.Scores.A, next.Result.Scores.B)
		h.broadcastLocked(h.gameOverMessage())
	}
}

// scheduleAdvance fires a single round advance after d. The timer only
// carries the generation it was scheduled in; the score snapshot already
// lives in the pending advance.
func (h *Hub) scheduleAdvance(d time.Duration) {
	gen := h.generation

	time.AfterFunc(d, func() {
		select {
		case h.fires <- gen:
		case <-h.quit:
		}
	})
}

func (h *Hub) handleFire(cfg *Config, gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.generation || h.state.Pending == nil {
		return
	}

	h.applyLocked(cfg, nil, "advance", feud.Advance{})
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.closed.Do(func() {
		close(h.quit)
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "feudbox_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id, err := uuid.NewRandom()
	if err != nil {
		log.Println("uuid error:", err)
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id.String()
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated board.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	rounds      []feud.Round
	idleTimeout time.Duration
}

func newGameManager(rounds []feud.Round, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		rounds:      rounds,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub, nil
	}

	hub, err := newHub(cfg, gameID, gm.rounds)
	if err != nil {
		return nil, err
	}

	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub, nil
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
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		gm.reap(time.Now().Add(-gm.idleTimeout))
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
			go hub.closeAll()
		}
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

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		hub, err := gm.getHub(cfg, gameID)
		if err != nil {
			http.Error(w, "unable to start game", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.commands <- commandRequest{client: c, msg: msg}:
		case <-h.quit:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
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

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed assets/feud/index.html
var indexHTML []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
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

// registerFeudGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerFeudGame(cfg *Config, path string, rounds []feud.Round, mux *httprouter.Router) *GameManager {
	gm := newGameManager(rounds, cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	return gm
}
