// Package client wraps outbound platform requests with credential handling:
// bearer attachment, proactive refresh near expiry, and the single
// 401-triggered refresh-and-retry that ends in forced logout when refresh
// cannot recover the session.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	inerrors "github.com/sentriview/go-session-core/internal/errors"
	"github.com/sentriview/go-session-core/session"
)

const defaultExpirySkew = 30 * time.Second

// SessionClient wraps every outbound API request. Before send it attaches
// "Authorization: Bearer <accessToken>" when a token is stored. A 401 on a
// request not yet retried triggers one coordinated refresh and exactly one
// re-issue; a second 401, or a failed refresh, propagates a RefreshFailed
// condition after forcing logout. Non-401 failures pass through to the
// caller unchanged.
type SessionClient struct {
	store       session.Store
	coordinator *Coordinator
	httpClient  *http.Client
	expirySkew  time.Duration
	logger      zerolog.Logger
}

// Option defines a function type to modify the SessionClient instance.
type Option func(*SessionClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *SessionClient) {
		c.httpClient = httpClient
	}
}

// WithExpirySkew sets the window before access-token expiry in which a
// refresh is attempted before sending, instead of waiting for the 401.
func WithExpirySkew(skew time.Duration) Option {
	return func(c *SessionClient) {
		c.expirySkew = skew
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *SessionClient) {
		c.logger = logger
	}
}

// New initializes a SessionClient with required dependencies.
func New(store session.Store, coordinator *Coordinator, options ...Option) (*SessionClient, error) {
	if store == nil {
		return nil, errors.New("[client.New] store is required")
	}
	if coordinator == nil {
		return nil, errors.New("[client.New] coordinator is required")
	}

	sessionClient := &SessionClient{
		store:       store,
		coordinator: coordinator,
		httpClient:  http.DefaultClient,
		expirySkew:  defaultExpirySkew,
		logger:      zerolog.Nop(),
	}

	for _, opt := range options {
		opt(sessionClient)
	}

	return sessionClient, nil
}

// Do sends the request with credential handling applied. The retried request
// is ordered strictly after the refresh resolves; requests that carry a
// non-replayable body (GetBody unset) are never re-issued and receive the
// original 401 response instead.
func (c *SessionClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionClient.Do] load session")
	}

	token := sess.AccessToken
	if token != "" && c.expiringSoon(token) {
		// Best effort: if the proactive refresh fails the request still goes
		// out and the 401 path decides what happens next.
		if fresh, refreshErr := c.coordinator.Refresh(ctx); refreshErr == nil {
			token = fresh
		} else {
			c.logger.Debug().Err(refreshErr).Msg("proactive refresh failed, sending with stored token")
		}
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures are the caller's to handle; never masked.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	drainAndClose(resp)

	fresh, err := c.coordinator.Refresh(ctx)
	if err != nil {
		// Only a failed refresh ends the session. A caller cancelled while
		// waiting gets its context error back untouched; the shared refresh
		// may still be succeeding for everyone else.
		if errors.Is(err, inerrors.ErrRefreshFailed) {
			c.forceLogout(ctx)
			return nil, errors.Wrap(err, "[SessionClient.Do] refresh after 401")
		}
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, errors.Wrap(bodyErr, "[SessionClient.Do] rewind request body")
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)

	resp, err = c.httpClient.Do(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// The refreshed token was still rejected. One retry is the limit;
		// drop the session rather than loop.
		drainAndClose(resp)
		c.forceLogout(ctx)
		return nil, fmt.Errorf("%w: request unauthorized after retry", inerrors.ErrRefreshFailed)
	}

	return resp, nil
}

// expiringSoon peeks at the access token's exp claim without verifying the
// signature (verification belongs to the identity service). Unparsable
// tokens are sent as-is and left to the 401 path.
func (c *SessionClient) expiringSoon(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < c.expirySkew
}

func (c *SessionClient) forceLogout(_ context.Context) {
	// The wipe must run even when the triggering request's context is
	// already cancelled, so it gets its own bounded context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.ClearAll(ctx); err != nil {
		c.logger.Error().Err(err).Msg("credential wipe after refresh failure failed")
		return
	}
	c.logger.Info().Msg("session cleared after refresh failure")
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()
}
