package session

import "context"

// Subkeys under the product namespace used by Store implementations for the
// session itself. Other components may persist their own keys under the same
// namespace; ClearAll removes those too.
const (
	KeyAccessToken  = "session:access_token"
	KeyRefreshToken = "session:refresh_token"
	KeyUserProfile  = "session:user"
)

// Store is the durable credential holder for the current session. It is the
// only component other parts of the core read or write directly, and
// ClearAll is the one logout primitive: every component that needs to end a
// session calls through it rather than deleting keys ad hoc.
type Store interface {
	// Save persists the session, replacing whatever was stored before.
	Save(ctx context.Context, sess Session) error
	// Load returns the persisted session, or the empty session when none is
	// stored. After ClearAll it must return the empty session
	// deterministically, never partial state.
	Load(ctx context.Context) (Session, error)
	// ClearAll removes every key under the product namespace from both the
	// durable and the session-scoped key space.
	ClearAll(ctx context.Context) error

	// Put and Get persist arbitrary app data under the product namespace.
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)

	// PutScoped and GetScoped use the session-scoped (transient) key space,
	// which is wiped by ClearAll along with the durable one.
	PutScoped(ctx context.Context, key, value string) error
	GetScoped(ctx context.Context, key string) (string, error)
}
