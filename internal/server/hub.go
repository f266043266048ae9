package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/room"
	"go.uber.org/zap"
)

// hub fans room activity out to the websocket clients attached to one room.
// It is the session orchestrator's presentation listener, so every adopted
// state transition reaches every connected client as a per-viewer view.
type hub struct {
	code    string
	session *room.Session
	rooms   *room.Manager
	logger  *zap.Logger

	mu        sync.Mutex
	clients   map[*client]struct{}
	busHandle int
}

func newHub(code string, session *room.Session, rooms *room.Manager, logger *zap.Logger) *hub {
	h := &hub{
		code:    code,
		session: session,
		rooms:   rooms,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.busHandle = session.Bus.Subscribe(h.onEvent)
	session.Orch.SetListener(h)
	return h
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	// Late joiners and reconnects get the current picture immediately.
	state := h.session.Orch.State()
	if state.Status == game.StatusPlaying || state.Status == game.StatusFinished {
		c.sendEnvelope(Envelope{Type: MsgState, State: viewPtr(state, c.playerID)})
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) close() {
	h.session.Bus.Unsubscribe(h.busHandle)
	h.mu.Lock()
	for c := range h.clients {
		c.closeSend()
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

// OnStateChanged implements game.StateListener.
func (h *hub) OnStateChanged(state game.TableState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.sendEnvelope(Envelope{Type: MsgState, State: viewPtr(state, c.playerID)})
	}
}

// OnGameStart implements game.StateListener.
func (h *hub) OnGameStart() {
	h.broadcast(Envelope{Type: MsgGameStarted})
}

// OnMessage implements game.StateListener.
func (h *hub) OnMessage(text string) {
	h.broadcast(Envelope{Type: MsgNotice, Message: text})
}

// OnPlayersChanged implements game.StateListener.
func (h *hub) OnPlayersChanged(players []game.Player) {
	views := make([]PlayerView, len(players))
	for i, p := range players {
		views[i] = PlayerView{ID: p.ID, Name: p.Name, IsHost: p.IsHost, CardCount: p.Hand.Len()}
	}
	h.broadcast(Envelope{Type: MsgPlayers, Players: views})
}

// announceLobby pushes the room's lobby roster to every client. Called by
// the gateway after joins, leaves and bot additions, which go through the
// room manager rather than the orchestrator.
func (h *hub) announceLobby(ctx context.Context) {
	doc, err := h.rooms.Document(ctx, h.code)
	if err != nil {
		h.logger.Warn("failed to load room document for lobby update",
			zap.String("room_id", h.code),
			zap.Error(err),
		)
		return
	}
	views := make([]PlayerView, 0, len(doc.Players))
	for _, p := range doc.Players {
		views = append(views, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			IsHost:    p.ID == doc.HostID,
			CardCount: p.CardCount,
		})
	}
	h.broadcast(Envelope{Type: MsgPlayers, Players: views})
}

func (h *hub) onEvent(e game.Event) {
	h.broadcast(Envelope{Type: MsgEvent, Event: &e})
}

func (h *hub) broadcast(env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to encode envelope", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.sendRaw(raw)
	}
}

func viewPtr(state game.TableState, viewerID string) *TableView {
	v := NewTableView(state, viewerID)
	return &v
}
