package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/replication"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const codeAttempts = 20

// Manager hosts rooms on this server: it owns the per-room runtime sessions
// and performs all lobby mutations against the shared document store.
type Manager struct {
	store  replication.Store
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	rng      *rand.Rand
	sessions map[string]*Session
}

// NewManager creates a room manager backed by the given document store.
func NewManager(store replication.Store, cfg Config, logger *zap.Logger, rng *rand.Rand) *Manager {
	return &Manager{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		rng:      rng,
		sessions: make(map[string]*Session),
	}
}

// DefaultRules returns the rule variants applied when a room is created
// without choosing any.
func (m *Manager) DefaultRules() game.HouseRules {
	return m.cfg.DefaultRules
}

// Create opens a new room and seats the creator as host. It returns the
// room's runtime session and the host's player ID. password may be empty for
// an open room.
func (m *Manager) Create(ctx context.Context, roomName, hostName, password string, maxPlayers int, rules game.HouseRules) (*Session, string, error) {
	if maxPlayers < 2 {
		maxPlayers = DefaultMaxPlayers
	}

	code, err := m.newCode(ctx)
	if err != nil {
		return nil, "", err
	}

	var passwordHash string
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", fmt.Errorf("failed to hash room password: %w", err)
		}
		passwordHash = string(hash)
	}

	hostID := uuid.NewString()
	now := time.Now().UTC()
	doc := replication.Document{
		RoomID:       code,
		RoomName:     roomName,
		HostID:       hostID,
		MaxPlayers:   maxPlayers,
		PasswordHash: passwordHash,
		Status:       game.StatusWaiting,
		Rules:        rules,
		Players: map[string]replication.PlayerRecord{
			hostID: {ID: hostID, Name: hostName, IsHost: true, JoinedAt: now},
		},
		CreatedAt: now,
	}
	if err := replication.SetDocument(ctx, m.store, code, doc); err != nil {
		return nil, "", fmt.Errorf("failed to create room %s: %w", code, err)
	}

	session, err := m.openSession(code)
	if err != nil {
		return nil, "", err
	}

	m.logger.Info("room created",
		zap.String("room_id", code),
		zap.String("room_name", roomName),
		zap.String("host_id", hostID),
		zap.Int("max_players", maxPlayers),
	)
	return session, hostID, nil
}

// Join seats a new player in a waiting room. It returns the assigned player
// ID.
func (m *Manager) Join(ctx context.Context, code, playerName, password string) (string, error) {
	doc, err := m.document(ctx, code)
	if err != nil {
		return "", err
	}
	if doc.Status != game.StatusWaiting {
		return "", ErrAlreadyInGame
	}
	if len(doc.Players) >= doc.MaxPlayers {
		return "", ErrRoomFull
	}
	if doc.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)); err != nil {
			return "", ErrWrongPassword
		}
	}

	playerID := uuid.NewString()
	doc.Players[playerID] = replication.PlayerRecord{
		ID:       playerID,
		Name:     playerName,
		JoinedAt: time.Now().UTC(),
	}
	if err := m.writePlayers(ctx, code, doc.Players, doc.HostID); err != nil {
		return "", err
	}

	m.logger.Info("player joined",
		zap.String("room_id", code),
		zap.String("player_id", playerID),
		zap.String("player_name", playerName),
	)
	return playerID, nil
}

// AddBot seats an automated participant. Only the host may add bots.
func (m *Manager) AddBot(ctx context.Context, code, requesterID string) (string, error) {
	doc, err := m.document(ctx, code)
	if err != nil {
		return "", err
	}
	if doc.HostID != requesterID {
		return "", ErrNotHost
	}
	if doc.Status != game.StatusWaiting {
		return "", ErrAlreadyInGame
	}
	if len(doc.Players) >= doc.MaxPlayers {
		return "", ErrRoomFull
	}

	botID := uuid.NewString()
	doc.Players[botID] = replication.PlayerRecord{
		ID:       botID,
		Name:     fmt.Sprintf("Bot %d", len(doc.Players)),
		JoinedAt: time.Now().UTC(),
	}
	if err := m.writePlayers(ctx, code, doc.Players, doc.HostID); err != nil {
		return "", err
	}
	if session, ok := m.Session(code); ok {
		session.Orch.AddBot(botID)
	}
	return botID, nil
}

// Leave removes a player from a room. The last player out destroys the room.
// If the host leaves a waiting room, the longest-seated remaining player is
// promoted. Leaving a running game hands the seat to a bot so play can
// continue.
func (m *Manager) Leave(ctx context.Context, code, playerID string) error {
	doc, err := m.document(ctx, code)
	if err != nil {
		return err
	}
	if _, ok := doc.Players[playerID]; !ok {
		return game.ErrUnknownPlayer
	}

	if doc.Status == game.StatusPlaying {
		if session, ok := m.Session(code); ok {
			session.Orch.AddBot(playerID)
			session.Orch.Reschedule()
			m.logger.Info("seat handed to bot",
				zap.String("room_id", code),
				zap.String("player_id", playerID),
			)
		}
		return nil
	}

	delete(doc.Players, playerID)
	if len(doc.Players) == 0 {
		m.closeSession(code)
		if err := m.store.Remove(ctx, code); err != nil {
			return fmt.Errorf("failed to remove room %s: %w", code, err)
		}
		m.logger.Info("room destroyed", zap.String("room_id", code))
		return nil
	}

	if doc.HostID == playerID {
		doc.HostID = promoteHost(doc.Players)
	}
	return m.writePlayers(ctx, code, doc.Players, doc.HostID)
}

// Start deals the opening hands and moves the room into play. Only the host
// may start, and at least two players must be seated.
func (m *Manager) Start(ctx context.Context, code, requesterID string) error {
	doc, err := m.document(ctx, code)
	if err != nil {
		return err
	}
	if doc.HostID != requesterID {
		return ErrNotHost
	}
	if doc.Status != game.StatusWaiting {
		return ErrAlreadyInGame
	}

	session, ok := m.Session(code)
	if !ok {
		return ErrRoomNotFound
	}

	m.mu.Lock()
	rng := rand.New(rand.NewSource(m.rng.Int63()))
	m.mu.Unlock()

	state, events, err := game.Start(code, seats(doc), doc.Rules, rng)
	if err != nil {
		return err
	}
	if err := session.Orch.Begin(ctx, state, events); err != nil {
		return err
	}

	now := time.Now().UTC()
	for id, p := range doc.Players {
		p.CardCount = game.StartingHandSize
		doc.Players[id] = p
	}
	fields, err := encodeFields(map[string]any{
		"players":   doc.Players,
		"startedAt": now,
	})
	if err != nil {
		return err
	}
	if err := m.store.Update(ctx, code, fields); err != nil {
		return fmt.Errorf("failed to record game start for room %s: %w", code, err)
	}

	m.logger.Info("game started",
		zap.String("room_id", code),
		zap.Int("players", len(doc.Players)),
	)
	return nil
}

// Session returns the runtime session for a locally hosted room.
func (m *Manager) Session(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[code]
	return session, ok
}

// List summarizes every room hosted by this manager for the lobby.
func (m *Manager) List(ctx context.Context) []Summary {
	m.mu.RLock()
	codes := make([]string, 0, len(m.sessions))
	for code := range m.sessions {
		codes = append(codes, code)
	}
	m.mu.RUnlock()
	sort.Strings(codes)

	summaries := make([]Summary, 0, len(codes))
	for _, code := range codes {
		doc, err := m.document(ctx, code)
		if err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			Code:        code,
			Name:        doc.RoomName,
			Status:      doc.Status,
			Players:     len(doc.Players),
			MaxPlayers:  doc.MaxPlayers,
			HasPassword: doc.PasswordHash != "",
		})
	}
	return summaries
}

// Document returns the current room document.
func (m *Manager) Document(ctx context.Context, code string) (replication.Document, error) {
	return m.document(ctx, code)
}

// Close tears down every hosted session. Room documents are left in the
// store for other participants.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, session := range m.sessions {
		session.Close()
		delete(m.sessions, code)
	}
}

func (m *Manager) document(ctx context.Context, code string) (replication.Document, error) {
	doc, err := replication.GetDocument(ctx, m.store, code)
	if err != nil {
		if errors.Is(err, replication.ErrNotFound) {
			return replication.Document{}, ErrRoomNotFound
		}
		return replication.Document{}, err
	}
	return doc, nil
}

// newCode draws an unused six-digit room code.
func (m *Manager) newCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		m.mu.Lock()
		code := fmt.Sprintf("%06d", m.rng.Intn(1000000))
		m.mu.Unlock()

		if _, err := m.store.Get(ctx, code); errors.Is(err, replication.ErrNotFound) {
			return code, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to probe room code: %w", err)
		}
	}
	return "", fmt.Errorf("no free room code after %d attempts", codeAttempts)
}

// openSession builds the runtime for a hosted room. The watch outlives the
// request that created the room, so it runs under its own context.
func (m *Manager) openSession(code string) (*Session, error) {
	m.mu.Lock()
	rng := rand.New(rand.NewSource(m.rng.Int63()))
	m.mu.Unlock()

	bus := game.NewEventBus()
	repl := replication.NewReplicator(m.store, code, m.logger, m.cfg.Replication)
	orch := game.NewOrchestrator(code, "", repl, bus, nil, game.OrchestratorConfig{
		BotDelay:     m.cfg.BotDelay,
		DeclareGrace: m.cfg.DeclareGrace,
	}, m.logger, rng)
	orch.ControlAllPlayers()

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := repl.Subscribe(watchCtx, orch.HandleRemoteState); err != nil {
		cancel()
		repl.Close()
		return nil, fmt.Errorf("failed to watch room %s: %w", code, err)
	}

	session := &Session{
		Code:        code,
		Bus:         bus,
		Replicator:  repl,
		Orch:        orch,
		cancelWatch: cancel,
	}
	m.mu.Lock()
	m.sessions[code] = session
	m.mu.Unlock()
	return session, nil
}

func (m *Manager) closeSession(code string) {
	m.mu.Lock()
	session, ok := m.sessions[code]
	if ok {
		delete(m.sessions, code)
	}
	m.mu.Unlock()
	if ok {
		session.Close()
	}
}

func (m *Manager) writePlayers(ctx context.Context, code string, players map[string]replication.PlayerRecord, hostID string) error {
	fields, err := encodeFields(map[string]any{
		"players": players,
		"hostId":  hostID,
	})
	if err != nil {
		return err
	}
	if err := m.store.Update(ctx, code, fields); err != nil {
		return fmt.Errorf("failed to update room %s: %w", code, err)
	}
	return nil
}

// seats orders the room's players by join time for dealing.
func seats(doc replication.Document) []game.Player {
	records := make([]replication.PlayerRecord, 0, len(doc.Players))
	for _, p := range doc.Players {
		records = append(records, p)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].JoinedAt.Equal(records[j].JoinedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].JoinedAt.Before(records[j].JoinedAt)
	})

	players := make([]game.Player, len(records))
	for i, r := range records {
		players[i] = game.Player{ID: r.ID, Name: r.Name, IsHost: r.ID == doc.HostID}
	}
	return players
}

// promoteHost picks the longest-seated remaining player as the new host.
func promoteHost(players map[string]replication.PlayerRecord) string {
	var next replication.PlayerRecord
	for _, p := range players {
		if next.ID == "" || p.JoinedAt.Before(next.JoinedAt) ||
			(p.JoinedAt.Equal(next.JoinedAt) && p.ID < next.ID) {
			next = p
		}
	}
	for id, p := range players {
		p.IsHost = id == next.ID
		players[id] = p
	}
	return next.ID
}

func encodeFields(values map[string]any) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", key, err)
		}
		fields[key] = raw
	}
	return fields, nil
}
