package room

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *replication.MemoryStore) {
	t.Helper()
	store := replication.NewMemoryStore()
	m := NewManager(store, Config{
		BotDelay:     time.Hour,
		DeclareGrace: time.Hour,
	}, zap.NewNop(), rand.New(rand.NewSource(11)))
	t.Cleanup(m.Close)
	return m, store
}

func TestCreateRoom(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, hostID, err := m.Create(ctx, "Friday Night", "Ada", "", 4, game.HouseRules{SwapOnSeven: true})
	require.NoError(t, err)
	require.Len(t, session.Code, 6)

	doc, err := replication.GetDocument(ctx, store, session.Code)
	require.NoError(t, err)
	assert.Equal(t, "Friday Night", doc.RoomName)
	assert.Equal(t, hostID, doc.HostID)
	assert.Equal(t, game.StatusWaiting, doc.Status)
	assert.True(t, doc.Rules.SwapOnSeven)
	require.Contains(t, doc.Players, hostID)
	assert.True(t, doc.Players[hostID].IsHost)
	assert.Empty(t, doc.PasswordHash)
}

func TestJoinRejections(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Join(ctx, "000000", "Ben", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	session, hostID, err := m.Create(ctx, "Locked", "Ada", "sekrit", 2, game.HouseRules{})
	require.NoError(t, err)

	_, err = m.Join(ctx, session.Code, "Ben", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	benID, err := m.Join(ctx, session.Code, "Ben", "sekrit")
	require.NoError(t, err)
	require.NotEmpty(t, benID)

	_, err = m.Join(ctx, session.Code, "Cal", "sekrit")
	assert.ErrorIs(t, err, ErrRoomFull)

	require.NoError(t, m.Start(ctx, session.Code, hostID))
	_, err = m.Join(ctx, session.Code, "Cal", "sekrit")
	assert.ErrorIs(t, err, ErrAlreadyInGame)
}

func TestStartDealsAndRecords(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, hostID, err := m.Create(ctx, "Deal", "Ada", "", 4, game.HouseRules{})
	require.NoError(t, err)

	err = m.Start(ctx, session.Code, hostID)
	assert.ErrorIs(t, err, game.ErrNotEnoughPlayers)

	benID, err := m.Join(ctx, session.Code, "Ben", "")
	require.NoError(t, err)

	err = m.Start(ctx, session.Code, benID)
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, m.Start(ctx, session.Code, hostID))

	doc, err := replication.GetDocument(ctx, store, session.Code)
	require.NoError(t, err)
	assert.Equal(t, game.StatusPlaying, doc.Status)
	require.NotNil(t, doc.GameState)
	require.Len(t, doc.GameState.Players, 2)
	for _, p := range doc.GameState.Players {
		assert.Len(t, p.Hand, game.StartingHandSize)
	}
	assert.NotNil(t, doc.StartedAt)
	for _, p := range doc.Players {
		assert.Equal(t, game.StartingHandSize, p.CardCount)
	}

	err = m.Start(ctx, session.Code, hostID)
	assert.ErrorIs(t, err, ErrAlreadyInGame)
}

func TestLeavePromotesAndDestroys(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, hostID, err := m.Create(ctx, "Churn", "Ada", "", 4, game.HouseRules{})
	require.NoError(t, err)
	benID, err := m.Join(ctx, session.Code, "Ben", "")
	require.NoError(t, err)

	require.NoError(t, m.Leave(ctx, session.Code, hostID))
	doc, err := replication.GetDocument(ctx, store, session.Code)
	require.NoError(t, err)
	assert.Equal(t, benID, doc.HostID)
	assert.True(t, doc.Players[benID].IsHost)
	assert.NotContains(t, doc.Players, hostID)

	require.NoError(t, m.Leave(ctx, session.Code, benID))
	_, err = replication.GetDocument(ctx, store, session.Code)
	assert.ErrorIs(t, err, replication.ErrNotFound)
	_, ok := m.Session(session.Code)
	assert.False(t, ok)
}

func TestLeaveDuringPlayHandsSeatToBot(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, hostID, err := m.Create(ctx, "Dropout", "Ada", "", 4, game.HouseRules{})
	require.NoError(t, err)
	benID, err := m.Join(ctx, session.Code, "Ben", "")
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx, session.Code, hostID))

	require.NoError(t, m.Leave(ctx, session.Code, benID))

	// The seat stays in the document so the game keeps its player count.
	doc, err := replication.GetDocument(ctx, store, session.Code)
	require.NoError(t, err)
	assert.Contains(t, doc.Players, benID)
	require.Len(t, doc.GameState.Players, 2)
}

func TestAddBot(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, hostID, err := m.Create(ctx, "Bots", "Ada", "", 4, game.HouseRules{})
	require.NoError(t, err)
	benID, err := m.Join(ctx, session.Code, "Ben", "")
	require.NoError(t, err)

	_, err = m.AddBot(ctx, session.Code, benID)
	assert.ErrorIs(t, err, ErrNotHost)

	botID, err := m.AddBot(ctx, session.Code, hostID)
	require.NoError(t, err)

	doc, err := replication.GetDocument(ctx, store, session.Code)
	require.NoError(t, err)
	require.Contains(t, doc.Players, botID)
	assert.Equal(t, "Bot 2", doc.Players[botID].Name)
}

func TestListSummaries(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.Create(ctx, "Open", "Ada", "", 4, game.HouseRules{})
	require.NoError(t, err)
	_, _, err = m.Create(ctx, "Locked", "Ben", "pw", 2, game.HouseRules{})
	require.NoError(t, err)

	summaries := m.List(ctx)
	require.Len(t, summaries, 2)
	byName := map[string]Summary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}
	assert.False(t, byName["Open"].HasPassword)
	assert.True(t, byName["Locked"].HasPassword)
	assert.Equal(t, 1, byName["Open"].Players)
	assert.Equal(t, 2, byName["Locked"].MaxPlayers)
}
