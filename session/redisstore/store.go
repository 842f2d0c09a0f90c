// Package redisstore provides the Redis-backed credential store. Keys live
// under a configurable namespace prefix so a credential wipe can clear by
// wildcard instead of enumerating known keys.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	inerrors "github.com/sentriview/go-session-core/internal/errors"
	"github.com/sentriview/go-session-core/session"
)

const scanBatchSize = 500

// Store is a Redis-backed [session.Store]. Durable keys are written under
// "<namespace>:", session-scoped keys under "<namespace>:tmp:"; ClearAll
// deletes everything under "<namespace>:*" so both spaces are always wiped
// together.
type Store struct {
	redis     redis.UniversalClient
	namespace string
}

// New creates a Store on the given Redis client. namespace sets the
// app-wide key prefix.
func New(client redis.UniversalClient, namespace string) (*Store, error) {
	if client == nil {
		return nil, errors.New("[redisstore.New] redis client is required")
	}
	if namespace == "" {
		return nil, errors.New("[redisstore.New] namespace is required")
	}
	return &Store{redis: client, namespace: namespace}, nil
}

func (s *Store) key(subkey string) string {
	return s.namespace + ":" + subkey
}

func (s *Store) scopedKey(subkey string) string {
	return s.namespace + ":tmp:" + subkey
}

// Save persists the session tokens and profile in one transaction.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	profile, err := session.EncodeProfile(sess.User)
	if err != nil {
		return fmt.Errorf("[redisstore.Save] encode profile: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.KeyAccessToken), sess.AccessToken, 0)
		pipe.Set(ctx, s.key(session.KeyRefreshToken), sess.RefreshToken, 0)
		pipe.Set(ctx, s.key(session.KeyUserProfile), profile, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Load returns the persisted session. A store with no session (or one wiped
// by ClearAll) yields the empty session, never partial state: if any of the
// three session keys is missing the whole load fails closed to empty.
func (s *Store) Load(ctx context.Context) (session.Session, error) {
	values, err := s.redis.MGet(ctx,
		s.key(session.KeyAccessToken),
		s.key(session.KeyRefreshToken),
		s.key(session.KeyUserProfile),
	).Result()
	if err != nil {
		return session.Empty(), fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
	}

	parts := make([]string, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			return session.Empty(), nil
		}
		parts[i] = str
	}

	user, err := session.DecodeProfile(parts[2])
	if err != nil {
		// Undecodable profile is treated as no session rather than a partial one.
		return session.Empty(), nil
	}

	sess := session.Session{
		User:            user,
		AccessToken:     parts[0],
		RefreshToken:    parts[1],
		IsAuthenticated: parts[0] != "" && user != nil,
	}
	return sess, nil
}

// ClearAll deletes every key under the namespace prefix, durable and
// session-scoped alike. This is the logout primitive; it must leave nothing
// behind that could bleed into the next user on a shared device.
func (s *Store) ClearAll(ctx context.Context) error {
	pattern := s.namespace + ":*"
	var cursor uint64

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Put stores an app value under the durable namespace.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Get reads an app value from the durable namespace. A missing key returns
// the empty string.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
	}
	return value, nil
}

// PutScoped stores a value in the session-scoped key space.
func (s *Store) PutScoped(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.scopedKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// GetScoped reads a value from the session-scoped key space.
func (s *Store) GetScoped(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, s.scopedKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", inerrors.ErrStoreUnavailable, err)
	}
	return value, nil
}

var _ session.Store = (*Store)(nil)
