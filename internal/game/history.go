package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HistoryEntry is one recorded transition: the state after it and the
// events it produced.
type HistoryEntry struct {
	Seq        uint64
	RecordedAt time.Time
	State      TableState
	Events     []Event
}

// History records a room's transitions in sequence order for spectating
// and post-game playback.
type History struct {
	RoomID       string
	Entries      []HistoryEntry
	CurrentIndex int
	mu           sync.RWMutex
}

// NewHistory creates an empty history for one room.
func NewHistory(roomID string) *History {
	return &History{
		RoomID:  roomID,
		Entries: make([]HistoryEntry, 0),
	}
}

// Record appends a transition. Out-of-order or duplicate sequence numbers
// are dropped; at-least-once change delivery makes duplicates normal.
func (h *History) Record(state TableState, events []Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.Entries); n > 0 && state.Seq <= h.Entries[n-1].Seq {
		return
	}
	h.Entries = append(h.Entries, HistoryEntry{
		Seq:        state.Seq,
		RecordedAt: time.Now().UTC(),
		State:      state.Clone(),
		Events:     append([]Event(nil), events...),
	})
}

// Start resets playback to the beginning.
func (h *History) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CurrentIndex = 0
}

// Next advances playback and returns the entry, or nil at the end.
func (h *History) Next() *HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.CurrentIndex < len(h.Entries) {
		entry := h.Entries[h.CurrentIndex]
		h.CurrentIndex++
		return &entry
	}
	return nil
}

// Previous steps playback back and returns the entry, or nil at the start.
func (h *History) Previous() *HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.CurrentIndex > 0 {
		h.CurrentIndex--
		entry := h.Entries[h.CurrentIndex]
		return &entry
	}
	return nil
}

// Skip moves playback by count entries in either direction, clamped to the
// recorded range, and returns the entry at the new position.
func (h *History) Skip(count int) *HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	newIndex := h.CurrentIndex + count
	if newIndex >= len(h.Entries) {
		newIndex = len(h.Entries) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}

	h.CurrentIndex = newIndex
	if h.CurrentIndex < len(h.Entries) {
		entry := h.Entries[h.CurrentIndex]
		return &entry
	}
	return nil
}

// Size returns the number of recorded transitions.
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Entries)
}

// EntryAt returns the entry at index, or nil when out of range.
func (h *History) EntryAt(index int) *HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if index >= 0 && index < len(h.Entries) {
		entry := h.Entries[index]
		return &entry
	}
	return nil
}

// EventsSince returns the events of every transition after seq, oldest
// first. Reconnecting clients use it to catch up.
func (h *History) EventsSince(seq uint64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var events []Event
	for _, entry := range h.Entries {
		if entry.Seq > seq {
			events = append(events, entry.Events...)
		}
	}
	return events
}

// SaveToFile writes the history as a gzipped gob file named after the room.
func (h *History) SaveToFile(directory string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	path := filepath.Join(directory, fmt.Sprintf("%s.history.gz", h.RoomID))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	defer zw.Close()

	enc := gob.NewEncoder(zw)
	if err := enc.Encode(h.RoomID); err != nil {
		return fmt.Errorf("failed to encode room ID: %w", err)
	}
	if err := enc.Encode(h.Entries); err != nil {
		return fmt.Errorf("failed to encode history entries: %w", err)
	}
	return nil
}

// LoadHistoryFromFile reads a history previously written by SaveToFile.
func LoadHistoryFromFile(directory, roomID string, logger *zap.Logger) (*History, error) {
	path := filepath.Join(directory, fmt.Sprintf("%s.history.gz", roomID))
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	h := &History{}
	if err := dec.Decode(&h.RoomID); err != nil {
		return nil, fmt.Errorf("failed to decode room ID: %w", err)
	}
	if err := dec.Decode(&h.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}

	logger.Info("history loaded",
		zap.String("room_id", h.RoomID),
		zap.Int("entries", len(h.Entries)),
	)
	return h, nil
}
