// Package server exposes the rooms over HTTP: REST endpoints for the lobby
// and a websocket per seated player for gameplay.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cardroom/uno-server-go/internal/config"
	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/room"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway is the HTTP front of the server. Room creation and joining are
// plain REST; everything that happens at the table flows over the
// websocket.
type Gateway struct {
	cfg      config.ServerConfig
	rooms    *room.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu   sync.Mutex
	hubs map[string]*hub
}

// NewGateway wires the HTTP routes and middleware.
func NewGateway(cfg config.ServerConfig, rooms *room.Manager, logger *zap.Logger) *Gateway {
	g := &Gateway{
		cfg:    cfg,
		rooms:  rooms,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hubs: make(map[string]*hub),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", g.handleHealth)
	mux.HandleFunc("/rooms", g.handleRooms)
	mux.HandleFunc("/join", g.handleJoin)
	mux.HandleFunc("/history", g.handleHistory)
	mux.HandleFunc("/ws", g.handleWS)

	handler := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(mux))

	g.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websockets hold the connection open
	}
	return g
}

// Handler exposes the routed handler, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

// Run serves until the listener fails or Shutdown is called.
func (g *Gateway) Run() error {
	g.logger.Info("http server listening", zap.String("address", g.cfg.Address))
	if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server and tears down all room hubs.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	for code, h := range g.hubs {
		h.close()
		delete(g.hubs, code)
	}
	g.mu.Unlock()
	return g.server.Shutdown(ctx)
}

type createRoomRequest struct {
	RoomName     string `json:"roomName"`
	PlayerName   string `json:"playerName"`
	Password     string `json:"password"`
	MaxPlayers   int    `json:"maxPlayers"`
	SwapOnSeven  *bool  `json:"swapOnSeven"`
	RotateOnZero *bool  `json:"rotateOnZero"`
}

type joinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password"`
}

type roomResponse struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleRooms lists rooms on GET and creates one on POST.
func (g *Gateway) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, g.rooms.List(r.Context()))
	case http.MethodPost:
		g.handleCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.PlayerName == "" {
		http.Error(w, "missing player name", http.StatusBadRequest)
		return
	}

	// Omitted rule variants fall back to the server's configured defaults.
	rules := g.rooms.DefaultRules()
	if req.SwapOnSeven != nil {
		rules.SwapOnSeven = *req.SwapOnSeven
	}
	if req.RotateOnZero != nil {
		rules.RotateOnZero = *req.RotateOnZero
	}

	session, hostID, err := g.rooms.Create(r.Context(), req.RoomName, req.PlayerName, req.Password,
		req.MaxPlayers, rules)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomResponse{RoomID: session.Code, PlayerID: hostID})
}

func (g *Gateway) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.RoomID == "" || req.PlayerName == "" {
		http.Error(w, "missing room ID or player name", http.StatusBadRequest)
		return
	}

	playerID, err := g.rooms.Join(r.Context(), req.RoomID, req.PlayerName, req.Password)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if h, ok := g.hubFor(req.RoomID); ok {
		h.announceLobby(r.Context())
	}
	writeJSON(w, http.StatusOK, roomResponse{RoomID: req.RoomID, PlayerID: playerID})
}

// handleHistory returns the events of every transition after the given
// sequence number, for clients catching up after a reconnect.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	code := r.URL.Query().Get("room_id")
	session, ok := g.rooms.Session(code)
	if !ok {
		http.Error(w, "room is not hosted here", http.StatusNotFound)
		return
	}
	since := uint64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "since must be a sequence number", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	events := session.Orch.History().EventsSince(since)
	if events == nil {
		events = []game.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleWS upgrades a seated player's connection. The player must have
// created or joined the room beforehand.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("room_id")
	playerID := query.Get("player_id")
	if code == "" || playerID == "" {
		http.Error(w, "missing room_id or player_id", http.StatusBadRequest)
		return
	}

	doc, err := g.rooms.Document(r.Context(), code)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if _, ok := doc.Players[playerID]; !ok {
		http.Error(w, "unknown player for this room", http.StatusForbidden)
		return
	}
	h, ok := g.hubFor(code)
	if !ok {
		http.Error(w, "room is not hosted here", http.StatusNotFound)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(g, h, conn, playerID, code)
	h.add(c)
	go c.writePump()
	go c.readPump()
}

// hubFor returns the room's fan-out hub, creating it on first use.
func (g *Gateway) hubFor(code string) (*hub, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.hubs[code]; ok {
		return h, true
	}
	session, ok := g.rooms.Session(code)
	if !ok {
		return nil, false
	}
	h := newHub(code, session, g.rooms, g.logger)
	g.hubs[code] = h
	return h, true
}

// dropHub removes a room's hub once the room itself is gone.
func (g *Gateway) dropHub(code string) {
	g.mu.Lock()
	h, ok := g.hubs[code]
	if ok {
		delete(g.hubs, code)
	}
	g.mu.Unlock()
	if ok {
		h.close()
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "ROOM_NOT_FOUND":
		status = http.StatusNotFound
	case "WRONG_PASSWORD", "NOT_HOST":
		status = http.StatusForbidden
	case "ROOM_FULL", "ALREADY_IN_GAME", "NOT_ENOUGH_PLAYERS":
		status = http.StatusConflict
	case "INTERNAL":
		g.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, Envelope{Type: MsgError, Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
