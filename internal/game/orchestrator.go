package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cardroom/uno-server-go/internal/deck"
	"go.uber.org/zap"
)

// Publisher is what the orchestrator requires from the replication layer: a
// durable write of the whole state. A transition is only acted upon once
// Publish returned nil, so two actors never compute diverging successors of
// the same state on this client's behalf.
type Publisher interface {
	Publish(ctx context.Context, state TableState) error
}

// StateListener is the presentation collaborator interface. All methods are
// fire-and-forget notifications.
type StateListener interface {
	OnPlayersChanged(players []Player)
	OnStateChanged(state TableState)
	OnGameStart()
	OnMessage(text string)
}

// OrchestratorConfig tunes the orchestrator's timers.
type OrchestratorConfig struct {
	// BotDelay is how long an automated participant waits before acting.
	BotDelay time.Duration
	// DeclareGrace is the window a player has to declare a low hand
	// before the penalty draw is assessed.
	DeclareGrace time.Duration
}

// Orchestrator sequences engine calls for the participants controlled by
// this client: the local player and any automated participants. It owns all
// timers; every scheduled task captures the sequence number at scheduling
// time and is inert once the state moved on or the room left play.
type Orchestrator struct {
	roomID        string
	localPlayerID string
	pub           Publisher
	bus           *EventBus
	listener      StateListener
	cfg           OrchestratorConfig
	logger        *zap.Logger
	rng           *rand.Rand
	history       *History

	mu         sync.Mutex
	state      TableState
	controlAll bool
	bots       map[string]bool
	penalties  map[string]uint64
	timers     map[int]*time.Timer
	nextTimer  int
	closed     bool
}

// NewOrchestrator creates an orchestrator for one room. listener may be nil.
func NewOrchestrator(roomID, localPlayerID string, pub Publisher, bus *EventBus, listener StateListener, cfg OrchestratorConfig, logger *zap.Logger, rng *rand.Rand) *Orchestrator {
	return &Orchestrator{
		roomID:        roomID,
		localPlayerID: localPlayerID,
		pub:           pub,
		bus:           bus,
		listener:      listener,
		cfg:           cfg,
		logger:        logger,
		rng:           rng,
		history:       NewHistory(roomID),
		bots:          make(map[string]bool),
		penalties:     make(map[string]uint64),
		timers:        make(map[int]*time.Timer),
	}
}

// AddBot marks a participant as automated and driven by this orchestrator.
func (o *Orchestrator) AddBot(playerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bots[playerID] = true
}

// SetListener installs or replaces the presentation listener.
func (o *Orchestrator) SetListener(l StateListener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listener = l
}

// ControlAllPlayers makes this orchestrator responsible for every seat at
// the table, humans included. A server process hosting the room uses this
// so declaration penalties apply to remote players too.
func (o *Orchestrator) ControlAllPlayers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.controlAll = true
}

// History returns the room's transition record.
func (o *Orchestrator) History() *History {
	return o.history
}

// State returns the orchestrator's current snapshot.
func (o *Orchestrator) State() TableState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Begin installs the freshly started game state, publishing it so every
// participant observes the same deal.
func (o *Orchestrator) Begin(ctx context.Context, state TableState, events []Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.commitLocked(ctx, state, events)
}

// PlayCard resolves the given player discarding the card at cardIndex.
func (o *Orchestrator) PlayCard(ctx context.Context, playerID string, cardIndex int, color deck.Color) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, events, err := ApplyPlay(o.state, playerID, cardIndex, color)
	if err != nil {
		return err
	}
	return o.commitLocked(ctx, next, events)
}

// DrawCard resolves the given player drawing.
func (o *Orchestrator) DrawCard(ctx context.Context, playerID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, events, err := ApplyDraw(o.state, playerID, o.rng)
	if err != nil {
		return err
	}
	return o.commitLocked(ctx, next, events)
}

// DeclareLowHand records the player's low-hand declaration.
func (o *Orchestrator) DeclareLowHand(ctx context.Context, playerID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, events, err := Declare(o.state, playerID)
	if err != nil {
		return err
	}
	return o.commitLocked(ctx, next, events)
}

// ChooseSwapTarget completes a suspended rank-7 resolution.
func (o *Orchestrator) ChooseSwapTarget(ctx context.Context, playerID, targetID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, events, err := ResolveSwap(o.state, playerID, targetID)
	if err != nil {
		return err
	}
	return o.commitLocked(ctx, next, events)
}

// HandleRemoteState adopts a state observed through the replication layer.
// Stale observations are dropped.
func (o *Orchestrator) HandleRemoteState(state TableState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || state.Seq <= o.state.Seq {
		return
	}
	prev := o.state.Status
	o.state = state.Clone()
	o.history.Record(o.state, nil)
	o.notifyLocked(prev, nil)
	o.scheduleLocked()
}

// Reschedule re-evaluates automated work against the current state. Needed
// when the set of controlled participants changed mid-game, for example when
// a bot takes over a departed player's seat on their turn. Duplicate timers
// are harmless: a fire whose captured sequence number is stale is inert.
func (o *Orchestrator) Reschedule() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.scheduleLocked()
}

// Close cancels all pending timers. Subsequent timer fires are no-ops.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
}

// commitLocked publishes the transition and, only once durably published,
// adopts it locally and schedules any follow-up work.
func (o *Orchestrator) commitLocked(ctx context.Context, next TableState, events []Event) error {
	if o.closed {
		return fmt.Errorf("orchestrator for room %s is closed", o.roomID)
	}
	if err := o.pub.Publish(ctx, next); err != nil {
		return err
	}

	prev := o.state.Status
	o.state = next
	o.history.Record(next, events)
	o.notifyLocked(prev, events)
	o.scheduleLocked()
	return nil
}

func (o *Orchestrator) notifyLocked(prevStatus Status, events []Event) {
	if o.bus != nil && len(events) > 0 {
		o.bus.PublishBatch(events)
	}
	if o.listener == nil {
		return
	}
	if prevStatus != StatusPlaying && o.state.Status == StatusPlaying {
		o.listener.OnGameStart()
	}
	o.listener.OnStateChanged(o.state.Clone())
	if o.state.Status == StatusFinished && o.state.WinnerID != "" {
		for _, p := range o.state.Players {
			if p.ID == o.state.WinnerID {
				o.listener.OnMessage(fmt.Sprintf("%s wins!", p.Name))
			}
		}
	}
}

// scheduleLocked inspects the freshly adopted state and schedules automated
// turns, swap choices and penalty checks for participants this client
// controls. Each task captures the current sequence number.
func (o *Orchestrator) scheduleLocked() {
	if o.state.Status != StatusPlaying {
		o.penalties = make(map[string]uint64)
		return
	}

	seq := o.state.Seq

	if o.state.PendingSwap != nil {
		if owner := o.state.PendingSwap.PlayerID; o.bots[owner] {
			o.afterLocked(o.cfg.BotDelay, func() { o.botSwap(seq, owner) })
		}
	} else if current := o.state.CurrentPlayer(); o.bots[current.ID] {
		o.afterLocked(o.cfg.BotDelay, func() { o.botTurn(seq, current.ID) })
	}

	for _, p := range o.state.Players {
		if !o.controlsLocked(p.ID) {
			continue
		}
		if p.Hand.Len() != 1 || p.Declared {
			delete(o.penalties, p.ID)
			continue
		}
		if _, pending := o.penalties[p.ID]; pending {
			continue
		}
		o.penalties[p.ID] = seq
		playerID := p.ID
		o.afterLocked(o.cfg.DeclareGrace, func() { o.assessPenalty(seq, playerID) })
	}
}

func (o *Orchestrator) controlsLocked(playerID string) bool {
	return o.controlAll || playerID == o.localPlayerID || o.bots[playerID]
}

// afterLocked schedules fn and tracks the timer so Close can cancel it.
func (o *Orchestrator) afterLocked(delay time.Duration, fn func()) {
	id := o.nextTimer
	o.nextTimer++
	o.timers[id] = time.AfterFunc(delay, func() {
		o.mu.Lock()
		delete(o.timers, id)
		o.mu.Unlock()
		fn()
	})
}

// botTurn plays one automated turn: a uniformly random playable card, or a
// draw when none is playable. Inert if the state moved past the captured
// sequence number or the room left play.
func (o *Orchestrator) botTurn(seq uint64, playerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Status != StatusPlaying || o.state.Seq != seq {
		return
	}
	if o.state.PendingSwap != nil || o.state.CurrentPlayer().ID != playerID {
		return
	}

	hand := o.state.CurrentPlayer().Hand
	playable := make([]int, 0, hand.Len())
	for i, c := range hand {
		if Playable(o.state, c) {
			playable = append(playable, i)
		}
	}

	var (
		next   TableState
		events []Event
		err    error
	)
	if len(playable) > 0 {
		cardIndex := playable[o.rng.Intn(len(playable))]
		color := deck.ColorWild
		if hand[cardIndex].IsWild() {
			colors := deck.Colors()
			color = colors[o.rng.Intn(len(colors))]
		}
		next, events, err = ApplyPlay(o.state, playerID, cardIndex, color)
	} else {
		next, events, err = ApplyDraw(o.state, playerID, o.rng)
	}
	if err != nil {
		o.logger.Warn("bot turn failed",
			zap.String("room_id", o.roomID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return
	}
	if err := o.commitLocked(context.Background(), next, events); err != nil {
		o.logger.Warn("bot turn publish failed",
			zap.String("room_id", o.roomID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
	}
}

// botSwap resolves a bot's pending rank-7 swap against a uniformly random
// opponent.
func (o *Orchestrator) botSwap(seq uint64, playerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Status != StatusPlaying || o.state.Seq != seq {
		return
	}
	if o.state.PendingSwap == nil || o.state.PendingSwap.PlayerID != playerID {
		return
	}

	targets := make([]string, 0, len(o.state.Players)-1)
	for _, p := range o.state.Players {
		if p.ID != playerID {
			targets = append(targets, p.ID)
		}
	}
	targetID := targets[o.rng.Intn(len(targets))]

	next, events, err := ResolveSwap(o.state, playerID, targetID)
	if err != nil {
		o.logger.Warn("bot swap failed",
			zap.String("room_id", o.roomID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return
	}
	if err := o.commitLocked(context.Background(), next, events); err != nil {
		o.logger.Warn("bot swap publish failed",
			zap.String("room_id", o.roomID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
	}
}

// assessPenalty applies the undeclared-low-hand draw once the grace window
// elapsed. The offense is keyed by the sequence number captured when the
// hand first reached one card; any clearing of the obligation in between
// makes the fire a no-op.
func (o *Orchestrator) assessPenalty(seq uint64, playerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Status != StatusPlaying {
		return
	}
	captured, pending := o.penalties[playerID]
	if !pending || captured != seq {
		return
	}
	delete(o.penalties, playerID)

	index := o.state.PlayerIndex(playerID)
	if index < 0 {
		return
	}
	if p := o.state.Players[index]; p.Hand.Len() != 1 || p.Declared {
		return
	}

	next, events, err := ApplyPenalty(o.state, playerID, o.rng)
	if err != nil {
		o.logger.Warn("penalty assessment failed",
			zap.String("room_id", o.roomID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return
	}
	if err := o.commitLocked(context.Background(), next, events); err != nil {
		o.logger.Warn("penalty publish failed",
			zap.String("room_id", o.roomID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return
	}
	if o.listener != nil {
		o.listener.OnMessage("Penalty: 2 cards for an undeclared last card")
	}
}
