package errors

import "errors"

// Conditions shared across packages. Each is matched with errors.Is; the
// producing call site adds its own context when wrapping.
var (
	// ErrSessionCorrupted reports a session that claims authentication but
	// carries no usable role. Holders must wipe credentials on sight.
	ErrSessionCorrupted = errors.New("session corrupted")

	// ErrRefreshFailed reports that an access token could not be renewed.
	// Callers treat it as the end of the session.
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrStoreUnavailable reports a credential store that cannot be reached.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrUnknownRole reports a role outside the enumeration, which the
	// permission matrix rejects at startup.
	ErrUnknownRole = errors.New("unknown role")
)
