package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "oidcrefresh:session:"

// RedisStore persists sessions in Redis so multiple application nodes share
// them. Values round-trip through JSON.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	secure bool
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration, secure bool) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, secure: secure}
}

// Load fetches the request's session from Redis, creating a fresh one when
// the cookie is absent or the key has expired.
func (s *RedisStore) Load(_ http.ResponseWriter, r *http.Request) (refreshSession, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return newSession(uuid.NewString(), nil, true), nil
	}

	raw, err := s.client.Get(r.Context(), redisKeyPrefix+cookie.Value).Bytes()
	if errors.Is(err, redis.Nil) {
		return newSession(uuid.NewString(), nil, true), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return newSession(cookie.Value, values, false), nil
}

// Save writes the session back with a refreshed TTL and sets the cookie on
// first use.
func (s *RedisStore) Save(w http.ResponseWriter, r *http.Request, sess refreshSession) error {
	sn, ok := sess.(*Session)
	if !ok {
		return fmt.Errorf("unexpected session type %T", sess)
	}

	raw, err := json.Marshal(sn.values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ctx := r.Context()
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.client.Set(ctx, redisKeyPrefix+sn.id, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	if sn.isNew {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    sn.id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(s.ttl.Seconds()),
		})
		sn.isNew = false
	}
	return nil
}
