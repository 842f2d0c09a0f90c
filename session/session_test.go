package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentriview/go-session-core/internal/utils"
	"github.com/sentriview/go-session-core/rbac"
	"github.com/sentriview/go-session-core/session"
)

func TestCorrupted(t *testing.T) {
	tests := []struct {
		name      string
		sess      session.Session
		corrupted bool
	}{
		{
			name:      "empty session is not corrupted",
			sess:      session.Empty(),
			corrupted: false,
		},
		{
			name: "authenticated with role is healthy",
			sess: session.Session{
				User:            &session.UserProfile{ID: "u1", Role: rbac.RoleAdmin},
				AccessToken:     "at",
				RefreshToken:    "rt",
				IsAuthenticated: true,
			},
			corrupted: false,
		},
		{
			name: "authenticated without profile is corrupted",
			sess: session.Session{
				AccessToken:     "at",
				IsAuthenticated: true,
			},
			corrupted: true,
		},
		{
			name: "authenticated with empty role is corrupted",
			sess: session.Session{
				User:            &session.UserProfile{ID: "u1"},
				AccessToken:     "at",
				IsAuthenticated: true,
			},
			corrupted: true,
		},
		{
			name: "unauthenticated without role is fine",
			sess: session.Session{User: &session.UserProfile{ID: "u1"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.corrupted, tc.sess.Corrupted())
		})
	}
}

func TestRole(t *testing.T) {
	require.Equal(t, rbac.Role(""), session.Empty().Role())

	sess := session.Session{User: &session.UserProfile{Role: rbac.RoleTechnician}}
	require.Equal(t, rbac.RoleTechnician, sess.Role())
}

func TestProfileCodecRoundTrip(t *testing.T) {
	user := utils.Ptr(session.UserProfile{
		ID:         "u1",
		Name:       "Dana Obi",
		Email:      "dana@tenant-a.example",
		Role:       rbac.RoleClientManager,
		TenantID:   "tenant-a",
		TenantName: "Tenant A",
	})

	encoded, err := session.EncodeProfile(user)
	require.NoError(t, err)

	decoded, err := session.DecodeProfile(encoded)
	require.NoError(t, err)
	require.Equal(t, user, decoded)
}

func TestProfileCodecNil(t *testing.T) {
	encoded, err := session.EncodeProfile(nil)
	require.NoError(t, err)

	decoded, err := session.DecodeProfile(encoded)
	require.NoError(t, err)
	require.Nil(t, decoded)
}
