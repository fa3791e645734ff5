package authflow

import "context"

const handlePrefix = "session:"

// Recovery persists a minimal session handle so an attempt survives a page
// reload. It is independent of the auth redirect bridge; the handle is
// cleared on reset and on successful submission.
type Recovery struct {
	kv KVStore
}

func NewRecovery(kv KVStore) *Recovery {
	return &Recovery{kv: kv}
}

func (r *Recovery) PersistHandle(ctx context.Context, slug, sessionID string) error {
	return r.kv.Put(ctx, handlePrefix+slug, sessionID)
}

// LoadHandle returns the persisted session id for slug, if any.
func (r *Recovery) LoadHandle(ctx context.Context, slug string) (string, bool, error) {
	return r.kv.Get(ctx, handlePrefix+slug)
}

func (r *Recovery) Clear(ctx context.Context, slug string) error {
	return r.kv.Delete(ctx, handlePrefix+slug)
}
