package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cardroom/uno-server-go/internal/deck"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 32
)

// client is one websocket connection bound to a seat in a room.
type client struct {
	gw       *Gateway
	hub      *hub
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	roomCode string
	logger   *zap.Logger
}

func newClient(gw *Gateway, h *hub, conn *websocket.Conn, playerID, roomCode string) *client {
	return &client{
		gw:       gw,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		playerID: playerID,
		roomCode: roomCode,
		logger: gw.logger.With(
			zap.String("room_id", roomCode),
			zap.String("player_id", playerID),
		),
	}
}

// sendRaw queues a message without blocking. A client that cannot keep up
// loses messages rather than stalling the whole room; the next state push
// carries the full picture anyway.
func (c *client) sendRaw(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.logger.Warn("client send queue full, dropping message")
	}
}

func (c *client) sendEnvelope(env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("failed to encode envelope", zap.Error(err))
		return
	}
	c.sendRaw(raw)
}

func (c *client) sendError(err error) {
	c.sendEnvelope(Envelope{Type: MsgError, Code: errorCode(err), Message: err.Error()})
}

// closeSend signals the write pump to finish.
func (c *client) closeSend() {
	defer func() { recover() }()
	close(c.send)
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendEnvelope(Envelope{Type: MsgError, Code: "BAD_REQUEST", Message: "malformed command"})
			continue
		}
		c.dispatch(cmd)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) dispatch(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	var err error
	switch cmd.Type {
	case CmdStartGame:
		err = c.gw.rooms.Start(ctx, c.roomCode, c.playerID)
	case CmdPlayCard:
		var color deck.Color
		if cmd.Color != "" {
			color, err = deck.ParseColor(cmd.Color)
			if err != nil {
				c.sendEnvelope(Envelope{Type: MsgError, Code: "BAD_REQUEST", Message: err.Error()})
				return
			}
		}
		err = c.hub.session.Orch.PlayCard(ctx, c.playerID, cmd.CardIndex, color)
	case CmdDrawCard:
		err = c.hub.session.Orch.DrawCard(ctx, c.playerID)
	case CmdDeclare:
		err = c.hub.session.Orch.DeclareLowHand(ctx, c.playerID)
	case CmdChooseSwap:
		err = c.hub.session.Orch.ChooseSwapTarget(ctx, c.playerID, cmd.TargetID)
	case CmdAddBot:
		_, err = c.gw.rooms.AddBot(ctx, c.roomCode, c.playerID)
		if err == nil {
			c.hub.announceLobby(ctx)
		}
	case CmdLeaveRoom:
		err = c.gw.rooms.Leave(ctx, c.roomCode, c.playerID)
		if err == nil {
			c.hub.remove(c)
			if _, ok := c.gw.rooms.Session(c.roomCode); !ok {
				c.gw.dropHub(c.roomCode)
			} else {
				c.hub.announceLobby(ctx)
			}
			c.closeSend()
		}
	default:
		c.sendEnvelope(Envelope{Type: MsgError, Code: "BAD_REQUEST", Message: "unknown command type"})
		return
	}
	if err != nil {
		c.sendError(err)
	}
}
