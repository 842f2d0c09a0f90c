package config

import "time"

type IdentityConfig interface {
	GetIdentityBaseURL() string
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetExpirySkew() time.Duration
}

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIdentityBaseURL returns the base URL of the external identity service
// (e.g., "https://id.sentriview.io"). All credential endpoints (/auth/login,
// /auth/refresh, /auth/logout) are resolved against it.
func (Identity) GetIdentityBaseURL() string {
	return GetEnv("IDENTITY_BASE_URL", "http://localhost:9000")
}

func (Identity) GetRequestTimeout() time.Duration {
	return getDurationEnv("REQUEST_TIMEOUT", 30*time.Second)
}

// GetRefreshTimeout bounds the /auth/refresh call. Exceeding it is a refresh
// failure, never an indefinite hang.
func (Identity) GetRefreshTimeout() time.Duration {
	return getDurationEnv("REFRESH_TIMEOUT", 10*time.Second)
}

// GetExpirySkew is the window before access-token expiry in which a refresh
// is triggered proactively instead of waiting for a 401.
func (Identity) GetExpirySkew() time.Duration {
	return getDurationEnv("EXPIRY_SKEW", 30*time.Second)
}

func getDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
