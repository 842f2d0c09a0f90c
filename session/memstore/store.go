// Package memstore provides an in-memory credential store used by tests and
// single-process deployments that do not carry a Redis dependency.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/sentriview/go-session-core/session"
)

// Store is an in-memory implementation of [session.Store]. Durable and
// session-scoped values are kept in separate maps to preserve the two key
// spaces of the storage contract; ClearAll wipes both by namespace prefix.
type Store struct {
	mu        sync.RWMutex
	namespace string
	durable   map[string]string
	scoped    map[string]string
}

// New creates an in-memory store with the given namespace prefix.
func New(namespace string) *Store {
	if namespace == "" {
		namespace = "svw"
	}
	return &Store{
		namespace: namespace,
		durable:   make(map[string]string),
		scoped:    make(map[string]string),
	}
}

func (s *Store) key(subkey string) string {
	return s.namespace + ":" + subkey
}

// Save persists the session.
func (s *Store) Save(_ context.Context, sess session.Session) error {
	profile, err := session.EncodeProfile(sess.User)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.durable[s.key(session.KeyAccessToken)] = sess.AccessToken
	s.durable[s.key(session.KeyRefreshToken)] = sess.RefreshToken
	s.durable[s.key(session.KeyUserProfile)] = profile
	return nil
}

// Load returns the persisted session, or the empty session when any of the
// session keys is missing.
func (s *Store) Load(_ context.Context) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, okAccess := s.durable[s.key(session.KeyAccessToken)]
	refresh, okRefresh := s.durable[s.key(session.KeyRefreshToken)]
	profile, okProfile := s.durable[s.key(session.KeyUserProfile)]
	if !okAccess || !okRefresh || !okProfile {
		return session.Empty(), nil
	}

	user, err := session.DecodeProfile(profile)
	if err != nil {
		return session.Empty(), nil
	}

	return session.Session{
		User:            user,
		AccessToken:     access,
		RefreshToken:    refresh,
		IsAuthenticated: access != "" && user != nil,
	}, nil
}

// ClearAll removes every key under the namespace from both key spaces.
func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := s.namespace + ":"
	for k := range s.durable {
		if strings.HasPrefix(k, prefix) {
			delete(s.durable, k)
		}
	}
	for k := range s.scoped {
		if strings.HasPrefix(k, prefix) {
			delete(s.scoped, k)
		}
	}
	return nil
}

// Put stores an app value under the durable namespace.
func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durable[s.key(key)] = value
	return nil
}

// Get reads an app value; a missing key returns the empty string.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durable[s.key(key)], nil
}

// PutScoped stores a value in the session-scoped key space.
func (s *Store) PutScoped(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoped[s.key(key)] = value
	return nil
}

// GetScoped reads a value from the session-scoped key space.
func (s *Store) GetScoped(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoped[s.key(key)], nil
}

// Len reports how many keys remain across both key spaces. Primarily useful
// for asserting that ClearAll left nothing behind.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.durable) + len(s.scoped)
}

var _ session.Store = (*Store)(nil)
