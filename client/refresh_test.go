package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentriview/go-session-core/client"
	inerrors "github.com/sentriview/go-session-core/internal/errors"
	"github.com/sentriview/go-session-core/rbac"
	"github.com/sentriview/go-session-core/session"
	"github.com/sentriview/go-session-core/session/memstore"
)

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()

	store := memstore.New("svw")
	err := store.Save(context.Background(), session.Session{
		User:            &session.UserProfile{ID: "u1", Role: rbac.RoleAdmin},
		AccessToken:     "stale-access",
		RefreshToken:    "refresh-1",
		IsAuthenticated: true,
	})
	require.NoError(t, err)
	return store
}

// identityStub serves /auth/refresh, counting calls and optionally delaying
// so concurrent callers genuinely overlap.
func identityStub(t *testing.T, calls *atomic.Int64, delay time.Duration, status int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body.RefreshToken)

		calls.Add(1)
		time.Sleep(delay)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh-access"}) //nolint:errcheck
	}))
}

func TestConcurrentRefreshIssuesOneNetworkCall(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 100*time.Millisecond, http.StatusOK)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	start := make(chan struct{})
	tokens := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load(), "an overlapping burst must issue exactly one refresh call")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "fresh-access", tokens[i])
	}
}

func TestRefreshPersistsNewAccessToken(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 0, http.StatusOK)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	token, err := coordinator.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh-access", token)

	sess, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh-access", sess.AccessToken)
	require.Equal(t, "refresh-1", sess.RefreshToken)
}

func TestRefreshFailureRejectsAllWaiters(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 100*time.Millisecond, http.StatusUnauthorized)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for i := 0; i < n; i++ {
		require.ErrorIs(t, errs[i], inerrors.ErrRefreshFailed)
	}
}

func TestRefreshDoesNotClobberConcurrentLogin(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 200*time.Millisecond, http.StatusOK)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, refreshErr := coordinator.Refresh(context.Background())
		done <- refreshErr
	}()

	// A login lands while the refresh call is on the wire.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, store.Save(context.Background(), session.Session{
		User:            &session.UserProfile{ID: "u2", Role: rbac.RoleClientMaster},
		AccessToken:     "access-2",
		RefreshToken:    "refresh-2",
		IsAuthenticated: true,
	}))

	require.NoError(t, <-done)

	sess, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-2", sess.RefreshToken, "refresh success must not restore the pre-login refresh token")
	require.Equal(t, "u2", sess.User.ID, "refresh success must not restore the pre-login profile")
	require.Equal(t, "fresh-access", sess.AccessToken)
}

func TestRefreshSlotClearsBetweenBursts(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 0, http.StatusOK)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	_, err = coordinator.Refresh(context.Background())
	require.NoError(t, err)
	_, err = coordinator.Refresh(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 2, calls.Load(), "sequential refreshes are separate calls")
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 0, http.StatusOK)
	defer server.Close()

	store := memstore.New("svw")
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	_, err = coordinator.Refresh(context.Background())
	require.ErrorIs(t, err, inerrors.ErrRefreshFailed)
	require.EqualValues(t, 0, calls.Load(), "no network call without a refresh token")
}

func TestRefreshTimeoutIsFailureNotHang(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 500*time.Millisecond, http.StatusOK)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL,
		client.WithRefreshTimeout(50*time.Millisecond))
	require.NoError(t, err)

	done := make(chan struct{})
	var refreshErr error
	go func() {
		_, refreshErr = coordinator.Refresh(context.Background())
		close(done)
	}()

	select {
	case <-done:
		require.ErrorIs(t, refreshErr, inerrors.ErrRefreshFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not respect its timeout")
	}
}

func TestRefreshWaiterCancellation(t *testing.T) {
	var calls atomic.Int64
	server := identityStub(t, &calls, 200*time.Millisecond, http.StatusOK)
	defer server.Close()

	store := seededStore(t)
	coordinator, err := client.NewCoordinator(store, server.URL)
	require.NoError(t, err)

	// Owner holds the slot open.
	ownerDone := make(chan struct{})
	go func() {
		coordinator.Refresh(context.Background()) //nolint:errcheck
		close(ownerDone)
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = coordinator.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)

	<-ownerDone
	require.EqualValues(t, 1, calls.Load())
}

func TestNewCoordinatorValidatesDependencies(t *testing.T) {
	_, err := client.NewCoordinator(nil, "http://localhost")
	require.Error(t, err)

	_, err = client.NewCoordinator(memstore.New("svw"), "")
	require.Error(t, err)
}
