package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	inerrors "github.com/sentriview/go-session-core/internal/errors"
	"github.com/sentriview/go-session-core/session"
)

const defaultRefreshTimeout = 10 * time.Second

// refreshRequest is the wire format of POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse is the identity service's answer to a refresh.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// refreshCall is the shared pending future for one in-flight refresh. Every
// caller that arrives while it is open waits on done and reads the same
// result.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Coordinator de-duplicates concurrent token-refresh attempts into a single
// network call. The nullable pending-call slot is checked and set under a
// real mutex: N overlapping Refresh calls produce exactly one POST to the
// identity service, and all of them resolve (or reject) together.
type Coordinator struct {
	store      session.Store
	refreshURL string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	pending *refreshCall
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithRefreshHTTPClient sets the HTTP client used for the refresh call.
func WithRefreshHTTPClient(httpClient *http.Client) CoordinatorOption {
	return func(c *Coordinator) {
		c.httpClient = httpClient
	}
}

// WithRefreshTimeout bounds each refresh network call. Exceeding it is a
// refresh failure, not an indefinite hang.
func WithRefreshTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// WithRefreshLogger sets the coordinator's logger.
func WithRefreshLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator initializes a Coordinator with required dependencies.
// refreshURL is the absolute URL of the identity service's refresh endpoint.
func NewCoordinator(store session.Store, refreshURL string, options ...CoordinatorOption) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[NewCoordinator] store is required")
	}
	if refreshURL == "" {
		return nil, errors.New("[NewCoordinator] refreshURL is required")
	}

	coordinator := &Coordinator{
		store:      store,
		refreshURL: refreshURL,
		httpClient: http.DefaultClient,
		timeout:    defaultRefreshTimeout,
		logger:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(coordinator)
	}

	return coordinator, nil
}

// Refresh returns a fresh access token. If a refresh is already in flight
// the caller joins it instead of issuing a second network call; otherwise it
// becomes the caller that performs the POST. On success the new access token
// has already been persisted through the store before any waiter is
// released. On failure every waiter receives the same error, wrapping
// [inerrors.ErrRefreshFailed] — the rejection is what triggers forced logout
// upstream.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if call := c.pending; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	c.pending = call
	c.mu.Unlock()

	// The refresh is shared by every waiter, so it runs on its own bounded
	// context rather than the first caller's: one caller navigating away
	// must not reject the whole burst.
	refreshCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	call.token, call.err = c.doRefresh(refreshCtx)

	// Clear the slot before releasing waiters so the next burst starts a
	// fresh call instead of observing a completed one.
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	close(call.done)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return call.token, call.err
}

func (c *Coordinator) doRefresh(ctx context.Context) (string, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, err)
	}
	if sess.RefreshToken == "" {
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, inerrors.ErrNoRefreshToken)
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: sess.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("refresh call failed")
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		c.logger.Warn().Int("status", resp.StatusCode).Msg("refresh rejected by identity service")
		return "", fmt.Errorf("%w: identity service returned %d", inerrors.ErrRefreshFailed, resp.StatusCode)
	}

	var refreshed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, err)
	}
	if refreshed.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in refresh response", inerrors.ErrRefreshFailed)
	}

	// The refresh success path writes only the access-token key. Writing the
	// whole session back would clobber a login that landed while the network
	// call was in flight with the stale state read above.
	if err := c.store.Put(ctx, session.KeyAccessToken, refreshed.AccessToken); err != nil {
		return "", fmt.Errorf("%w: %v", inerrors.ErrRefreshFailed, err)
	}

	c.logger.Debug().Msg("access token refreshed")
	return refreshed.AccessToken, nil
}
