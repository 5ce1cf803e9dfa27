package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	ownerKeyPrefix   = "session_owner:"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// RedisSessionRegistry implements SessionRegistry on Redis so sessions
// survive process restarts. Idle expiry rides on key TTLs: Resolve slides
// the TTL forward, and an untouched session simply disappears.
type RedisSessionRegistry struct {
	client      *redis.Client
	idleTimeout time.Duration
}

func NewRedisSessionRegistry(client *redis.Client, idleTimeout time.Duration) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client, idleTimeout: idleTimeout}
}

// createScript swaps the per-user owner key to the new token and deletes
// the superseded session in one atomic step, so two simultaneous logins
// for the same user cannot both stay live.
//
// KEYS[1] = owner key, KEYS[2] = new session key
// ARGV[1] = payload, ARGV[2] = ttl ms, ARGV[3] = session key prefix, ARGV[4] = token
var createScript = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old then
  redis.call('DEL', ARGV[3] .. old)
end
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
redis.call('SET', KEYS[1], ARGV[4], 'PX', ARGV[2])
return 1
`)

// invalidateScript deletes a session and its owner index entry, unless a
// newer session already owns the index.
//
// KEYS[1] = session key, KEYS[2] = owner key, ARGV[1] = token
var invalidateScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
local owner = redis.call('GET', KEYS[2])
if owner == ARGV[1] then
  redis.call('DEL', KEYS[2])
end
return 1
`)

func (r *RedisSessionRegistry) CreateOrReplace(ctx context.Context, user User) (string, error) {
	token, err := NewSessionToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return "", err
	}

	keys := []string{ownerKeyPrefix + user.Username, sessionKeyPrefix + token}
	argv := []interface{}{string(payload), r.idleTimeout.Milliseconds(), sessionKeyPrefix, token}
	if err := createScript.Run(ctx, r.client, keys, argv...).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (r *RedisSessionRegistry) Resolve(ctx context.Context, token string) (User, bool, error) {
	if token == "" {
		return User{}, false, nil
	}

	payload, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}

	var user User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		return User{}, false, err
	}

	// Slide the idle deadline on both the session and its owner index.
	pipe := r.client.Pipeline()
	pipe.PExpire(ctx, sessionKeyPrefix+token, r.idleTimeout)
	pipe.PExpire(ctx, ownerKeyPrefix+user.Username, r.idleTimeout)
	if _, err := pipe.Exec(ctx); err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (r *RedisSessionRegistry) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	payload, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	var user User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		// Unreadable payload: drop the session key alone.
		return r.client.Del(ctx, sessionKeyPrefix+token).Err()
	}

	keys := []string{sessionKeyPrefix + token, ownerKeyPrefix + user.Username}
	return invalidateScript.Run(ctx, r.client, keys, token).Err()
}
