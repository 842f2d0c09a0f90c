package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentriview/go-session-core/internal/config"
)

func TestGetExpirySkew(t *testing.T) {
	c := config.New()

	require.Equal(t, 30*time.Second, c.GetExpirySkew())

	t.Setenv("EXPIRY_SKEW", "45s")
	require.Equal(t, 45*time.Second, c.GetExpirySkew())

	t.Setenv("EXPIRY_SKEW", "not-a-duration")
	require.Equal(t, 30*time.Second, c.GetExpirySkew())
}

func TestGetRefreshTimeout(t *testing.T) {
	c := config.New()

	require.Equal(t, 10*time.Second, c.GetRefreshTimeout())

	t.Setenv("REFRESH_TIMEOUT", "3s")
	require.Equal(t, 3*time.Second, c.GetRefreshTimeout())
}
