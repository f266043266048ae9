// Package replication keeps every participant's view of a room consistent.
// Rooms are replicated as whole documents through a minimal key-value store
// contract; there is no central authority enforcing rules, so reconciliation
// relies solely on the monotonic turn sequence number carried by the game
// state.
package replication

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cardroom/uno-server-go/internal/game"
)

// ErrNotFound is returned when a document does not exist at the given key.
var ErrNotFound = errors.New("document not found")

// Store is the replication transport contract: a key-value document store
// with at-least-once change delivery and no cross-key transactional
// guarantees. The core depends only on this contract, not on any specific
// backend.
type Store interface {
	// Set writes the whole document at key.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Update merges the given top-level fields into the document at key.
	Update(ctx context.Context, key string, fields map[string]json.RawMessage) error
	// Remove deletes the document at key.
	Remove(ctx context.Context, key string) error
	// Get fetches the document at key.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Watch registers a callback invoked at least once per observed
	// change to the document at key. The returned cancel func stops
	// delivery.
	Watch(ctx context.Context, key string, fn func(json.RawMessage)) (func(), error)
}

// PlayerRecord is one participant's entry in the room document.
type PlayerRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsHost    bool      `json:"isHost"`
	CardCount int       `json:"cardCount"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Document is the replicated room document, addressed by room ID.
type Document struct {
	RoomID       string                  `json:"roomId"`
	RoomName     string                  `json:"roomName"`
	HostID       string                  `json:"hostId"`
	MaxPlayers   int                     `json:"maxPlayers"`
	PasswordHash string                  `json:"passwordHash,omitempty"`
	Status       game.Status             `json:"status"`
	Rules        game.HouseRules         `json:"houseRules"`
	Players      map[string]PlayerRecord `json:"players"`
	GameState    *game.TableState        `json:"gameState"`
	CreatedAt    time.Time               `json:"createdAt"`
	StartedAt    *time.Time              `json:"startedAt,omitempty"`
}

// GetDocument fetches and decodes the room document at key.
func GetDocument(ctx context.Context, store Store, key string) (Document, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// SetDocument encodes and writes the room document at key.
func SetDocument(ctx context.Context, store Store, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw)
}
