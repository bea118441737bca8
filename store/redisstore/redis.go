// Package redisstore implements store.Store and store.Locker on Redis.
//
// Documents live under "<prefix>:<principal>:<kind>" and the per-principal
// lock under "<prefix>:<principal>:lock". The last segment is always a valid
// store.Kind or "lock", which is not a Kind, so no principal ID can make a
// lock key collide with a document key.
//
// The lock is a SET NX PX lease. While held it is renewed every third of
// LockTTL, so slow work under the lock (a notifier retrying a webhook) does
// not outlive the lease. Release and renewal both compare the holder's token,
// so a holder whose lease expired cannot touch a lock taken over by another
// process.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goMFA/store"
)

// ErrBackend wraps Redis transport and server errors.
var ErrBackend = errors.New("redisstore: backend unavailable")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Config tunes key naming and locking.
type Config struct {
	// Prefix namespaces every key. Default "mfa".
	Prefix string
	// LockTTL bounds how long a crashed holder can keep a principal locked.
	// Live holders renew it. Default 5s.
	LockTTL time.Duration
	// LockWait bounds how long Lock waits before ErrLockTimeout. Default 2s.
	LockWait time.Duration
	// LockRetry is the polling interval while waiting. Default 10ms.
	LockRetry time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "mfa"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Second
	}
	if c.LockWait <= 0 {
		c.LockWait = 2 * time.Second
	}
	if c.LockRetry <= 0 {
		c.LockRetry = 10 * time.Millisecond
	}
	return c
}

// Store is a Redis-backed store.Store.
type Store struct {
	redis redis.UniversalClient
	cfg   Config
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Locker = (*Store)(nil)
)

// New wraps an existing client. The caller keeps ownership of the client.
func New(client redis.UniversalClient, cfg Config) *Store {
	return &Store{
		redis: client,
		cfg:   cfg.withDefaults(),
	}
}

func (s *Store) key(principalID string, kind store.Kind) string {
	return s.cfg.Prefix + ":" + principalID + ":" + string(kind)
}

func (s *Store) lockKey(principalID string) string {
	return s.cfg.Prefix + ":" + principalID + ":lock"
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, principalID string, kind store.Kind) ([]byte, error) {
	if !kind.Valid() {
		return nil, store.ErrInvalidKind
	}
	data, err := s.redis.Get(ctx, s.key(principalID, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return data, nil
}

// Set implements store.Store. Documents never expire in Redis.
func (s *Store) Set(ctx context.Context, principalID string, kind store.Kind, value []byte) error {
	if !kind.Valid() {
		return store.ErrInvalidKind
	}
	if err := s.redis.Set(ctx, s.key(principalID, kind), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, principalID string, kind store.Kind) error {
	if !kind.Valid() {
		return store.ErrInvalidKind
	}
	if err := s.redis.Del(ctx, s.key(principalID, kind)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Lock implements store.Locker.
func (s *Store) Lock(ctx context.Context, principalID string) (func(), error) {
	key := s.lockKey(principalID)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	ticker := time.NewTicker(s.cfg.LockRetry)
	defer ticker.Stop()

	for {
		ok, err := s.redis.SetNX(waitCtx, key, token, s.cfg.LockTTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		if ok {
			stop := make(chan struct{})
			stopped := make(chan struct{})
			go s.renew(key, token, stop, stopped)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-stopped
					// Release on a fresh context so a cancelled caller still frees the lock.
					relCtx, relCancel := context.WithTimeout(context.Background(), time.Second)
					defer relCancel()
					_ = releaseScript.Run(relCtx, s.redis, []string{key}, token).Err()
				})
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, store.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// renew extends the lease until stop is closed or the lease is found to
// belong to someone else.
func (s *Store) renew(key, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	every := s.cfg.LockTTL / 3
	if every < time.Millisecond {
		every = time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	ttl := s.cfg.LockTTL.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		held, err := renewScript.Run(ctx, s.redis, []string{key}, token, ttl).Int()
		cancel()
		if err == nil && held == 0 {
			return
		}
	}
}
