package session

import (
	"encoding/json"

	"github.com/sentriview/go-session-core/internal/utils"
	"github.com/sentriview/go-session-core/rbac"
)

// UserProfile is the identity carried by an authenticated session.
type UserProfile struct {
	ID         string    `json:"id,omitempty"`          // Unique identifier for the user
	Name       string    `json:"name,omitempty"`        // Display name
	Email      string    `json:"email,omitempty"`       // User's email address
	Role       rbac.Role `json:"role,omitempty"`        // Role driving every authorization decision
	TenantID   string    `json:"tenant_id,omitempty"`   // Tenant the user belongs to (empty for platform roles)
	TenantName string    `json:"tenant_name,omitempty"` // Human-readable tenant name
}

// Session is the record of the current authenticated identity and its
// credentials. Exactly one exists per client runtime: created by login,
// replaced by refresh, destroyed by logout or corruption detection.
type Session struct {
	User            *UserProfile `json:"user,omitempty"`          // Profile of the authenticated user, nil when logged out
	AccessToken     string       `json:"access_token,omitempty"`  // Short-lived credential attached to outbound requests
	RefreshToken    string       `json:"refresh_token,omitempty"` // Longer-lived credential used only to mint access tokens
	IsAuthenticated bool         `json:"is_authenticated"`        // Whether the session represents a logged-in identity
}

// Empty returns the logged-out session. Loading a cleared store yields this
// deterministically.
func Empty() Session {
	return Session{}
}

// Role returns the session's role, or the empty role when no profile exists.
func (s Session) Role() rbac.Role {
	return utils.Value(s.User).Role
}

// Corrupted reports the SessionCorrupted condition: the session claims to be
// authenticated but carries no usable role. A corrupted session must never
// continue operating with a partial identity; callers are expected to wipe
// credentials and treat the user as logged out.
func (s Session) Corrupted() bool {
	return s.IsAuthenticated && (s.User == nil || s.User.Role == "")
}

// EncodeProfile serializes a profile for storage. A nil profile encodes to
// the JSON null literal so stores can round-trip logged-out sessions.
func EncodeProfile(user *UserProfile) (string, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeProfile deserializes a stored profile.
func DecodeProfile(data string) (*UserProfile, error) {
	var user *UserProfile
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, err
	}
	return user, nil
}
