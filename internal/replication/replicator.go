package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cardroom/uno-server-go/internal/game"
	"go.uber.org/zap"
)

// ErrOutOfSync is returned when publishing keeps failing after retries. The
// caller must re-fetch the authoritative document before allowing further
// actions.
var ErrOutOfSync = errors.New("out of sync with shared document")

// Options tunes the replicator's retry behavior.
type Options struct {
	// MaxRetries is the number of publish attempts after the first.
	MaxRetries int
	// RetryBackoff is the initial delay between attempts; it doubles per
	// attempt.
	RetryBackoff time.Duration
}

// DefaultOptions returns the retry settings used when none are supplied.
func DefaultOptions() Options {
	return Options{MaxRetries: 3, RetryBackoff: 100 * time.Millisecond}
}

// Replicator owns one room's local copy of the table state and keeps it in
// step with the shared document. Publishes are whole-state, last-writer-wins:
// two clients racing from the same prior sequence number silently overwrite
// one another, which is an accepted limitation of this replication model. A
// compare-and-swap on the sequence number is the extension point for anyone
// wanting stronger guarantees.
type Replicator struct {
	store  Store
	roomID string
	logger *zap.Logger
	opts   Options

	mu          sync.Mutex
	current     game.TableState
	cancelWatch func()
}

// NewReplicator creates a replicator for one room.
func NewReplicator(store Store, roomID string, logger *zap.Logger, opts Options) *Replicator {
	if opts.MaxRetries == 0 && opts.RetryBackoff == 0 {
		opts = DefaultOptions()
	}
	return &Replicator{
		store:  store,
		roomID: roomID,
		logger: logger,
		opts:   opts,
	}
}

// Current returns the locally held state snapshot.
func (r *Replicator) Current() game.TableState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

// Publish writes the state into the shared document, retrying transient
// failures with bounded backoff. The local copy is only advanced once the
// write succeeded: a transition is not "official" until every other
// participant can observe it.
func (r *Replicator) Publish(ctx context.Context, state game.TableState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	status, err := json.Marshal(state.Status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	fields := map[string]json.RawMessage{
		"gameState": raw,
		"status":    status,
	}

	backoff := r.opts.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if lastErr = r.store.Update(ctx, r.roomID, fields); lastErr == nil {
			r.adopt(state)
			return nil
		}
		r.logger.Warn("publish attempt failed",
			zap.String("room_id", r.roomID),
			zap.Uint64("seq", state.Seq),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("%w: %v", ErrOutOfSync, lastErr)
}

// Subscribe starts watching the shared document. onChange fires once for
// every remote state the reconciliation rule adopts; stale or duplicate
// observations are dropped silently.
func (r *Replicator) Subscribe(ctx context.Context, onChange func(game.TableState)) error {
	cancel, err := r.store.Watch(ctx, r.roomID, func(raw json.RawMessage) {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			r.logger.Warn("failed to decode room document",
				zap.String("room_id", r.roomID),
				zap.Error(err),
			)
			return
		}
		if doc.GameState == nil {
			return
		}
		if adopted := r.reconcile(*doc.GameState); adopted {
			onChange(r.Current())
		}
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.cancelWatch = cancel
	r.mu.Unlock()
	return nil
}

// Refresh re-fetches the authoritative document and adopts its state
// wholesale, regardless of sequence number. Used to recover after
// ErrOutOfSync.
func (r *Replicator) Refresh(ctx context.Context) (game.TableState, error) {
	doc, err := GetDocument(ctx, r.store, r.roomID)
	if err != nil {
		return game.TableState{}, err
	}
	if doc.GameState == nil {
		return game.TableState{}, fmt.Errorf("room %s has no game state", r.roomID)
	}

	r.mu.Lock()
	r.current = doc.GameState.Clone()
	r.mu.Unlock()
	return r.Current(), nil
}

// Close stops the subscription, if any.
func (r *Replicator) Close() {
	r.mu.Lock()
	cancel := r.cancelWatch
	r.cancelWatch = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// reconcile applies the last-writer-wins rule: a remote state is adopted
// wholesale iff its sequence number exceeds the locally held one. Applying
// the same remote state twice is a no-op the second time, and the local
// sequence number never decreases.
func (r *Replicator) reconcile(remote game.TableState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if remote.Seq <= r.current.Seq {
		return false
	}
	r.current = remote.Clone()
	return true
}

func (r *Replicator) adopt(state game.TableState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.Seq > r.current.Seq {
		r.current = state.Clone()
	}
}
