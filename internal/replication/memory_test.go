package replication

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "123456", json.RawMessage(`{"roomId":"123456"}`)))

	raw, err := store.Get(ctx, "123456")
	require.NoError(t, err)
	assert.JSONEq(t, `{"roomId":"123456"}`, string(raw))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateMergesFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "123456", json.RawMessage(`{"roomId":"123456","status":"waiting"}`)))
	require.NoError(t, store.Update(ctx, "123456", map[string]json.RawMessage{
		"status": json.RawMessage(`"playing"`),
	}))

	raw, err := store.Get(ctx, "123456")
	require.NoError(t, err)
	assert.JSONEq(t, `{"roomId":"123456","status":"playing"}`, string(raw))

	err = store.Update(ctx, "missing", map[string]json.RawMessage{"status": json.RawMessage(`"playing"`)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRemove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "123456", json.RawMessage(`{}`)))
	require.NoError(t, store.Remove(ctx, "123456"))

	_, err := store.Get(ctx, "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreWatchDeliversChanges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 8)

	cancel, err := store.Watch(ctx, "123456", func(raw json.RawMessage) {
		mu.Lock()
		seen = append(seen, string(raw))
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Set(ctx, "123456", json.RawMessage(`{"v":1}`)))
	require.NoError(t, store.Set(ctx, "123456", json.RawMessage(`{"v":2}`)))
	// A different key must not reach this watcher.
	require.NoError(t, store.Set(ctx, "999999", json.RawMessage(`{"v":3}`)))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for watch delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.JSONEq(t, `{"v":1}`, seen[0])
	assert.JSONEq(t, `{"v":2}`, seen[1])
}

func TestMemoryStoreWatchCancelStopsDelivery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	delivered := make(chan struct{}, 8)
	cancel, err := store.Watch(ctx, "123456", func(json.RawMessage) {
		delivered <- struct{}{}
	})
	require.NoError(t, err)

	cancel()
	require.NoError(t, store.Set(ctx, "123456", json.RawMessage(`{}`)))

	select {
	case <-delivered:
		t.Fatal("delivery after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}
