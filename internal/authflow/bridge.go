// Package authflow preserves attempt state around the external sign-in
// redirect and across accidental page reloads. The sign-in flow itself is
// opaque: hand it a return path, expect control back.
package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"quiz-attempt-engine/internal/domain"
)

// KVStore is the persistent key-value contract both flows share. Take reads
// and removes a key in one step so a value can be consumed exactly once.
type KVStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Take(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

const snapshotPrefix = "authRedirect:"

// Bridge persists an attempt snapshot before the sign-in handoff and restores
// it exactly once on return.
type Bridge struct {
	kv KVStore
}

func NewBridge(kv KVStore) *Bridge {
	return &Bridge{kv: kv}
}

// SaveForRedirect serializes the snapshot under authRedirect:<slug> in a
// single write, so a partially written snapshot is never observable.
func (b *Bridge) SaveForRedirect(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := b.kv.Put(ctx, snapshotPrefix+snap.QuizSlug, string(data)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// RestoreAfterRedirect reads and removes the snapshot for slug. A missing or
// corrupt snapshot returns nil: the caller falls back to treating the attempt
// as unauthenticated and incomplete rather than failing.
func (b *Bridge) RestoreAfterRedirect(ctx context.Context, slug string) (*domain.Snapshot, error) {
	raw, ok, err := b.kv.Take(ctx, snapshotPrefix+slug)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("discarding corrupt auth snapshot for %s: %v", slug, err)
		return nil, nil
	}
	return &snap, nil
}

// Clear drops any unconsumed snapshot, e.g. on reset.
func (b *Bridge) Clear(ctx context.Context, slug string) error {
	return b.kv.Delete(ctx, snapshotPrefix+slug)
}
