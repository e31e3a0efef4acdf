// Package redisstore keeps server-side sessions in Redis, letting key
// expiry retire them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bootcamp/internal/domain"
)

// ErrRedisUnavailable wraps every transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

var _ domain.SessionRepository = (*Store)(nil)

// Store implements domain.SessionRepository on Redis. Each session is one
// JSON value whose TTL matches its expiry.
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewStore returns a Store using keys under prefix.
func NewStore(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "bootcamp"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

type record struct {
	IdentityID string    `json:"identity_id"`
	UserAgent  string    `json:"user_agent"`
	IP         string    `json:"ip"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Store) key(token string) string {
	return s.prefix + ":session:" + token
}

// Create stores s until it expires. Sessions that are already expired are
// not stored.
func (s *Store) Create(ctx context.Context, sess domain.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(record{
		IdentityID: sess.IdentityID,
		UserAgent:  sess.UserAgent,
		IP:         sess.IP,
		ExpiresAt:  sess.ExpiresAt,
		CreatedAt:  sess.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(sess.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetByToken returns the live session for token, or nil.
func (s *Store) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{
		Token:      token,
		IdentityID: r.IdentityID,
		UserAgent:  r.UserAgent,
		IP:         r.IP,
		ExpiresAt:  r.ExpiresAt,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// Delete removes the session for token. Deleting a missing session is not
// an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts sessions when their TTL lapses.
func (s *Store) DeleteExpired(context.Context) error {
	return nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
