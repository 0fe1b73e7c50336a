package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EntityLocker serialises mutating operations on a single entity. Acquire
// blocks until the lock is held or the deadline passes.
type EntityLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ErrLockTimeout is returned when the per-entity lock could not be taken
// within the acquisition deadline; callers surface it as a concurrency
// conflict and retry.
var ErrLockTimeout = fmt.Errorf("entity lock acquisition timed out")

const (
	lockTTL       = 30 * time.Second
	lockDeadline  = 5 * time.Second
	lockRetryStep = 50 * time.Millisecond
)

// Locker implements EntityLocker on Redis with SET NX PX and an owner
// token so only the holder can release.
type Locker struct {
	client *redis.Client
}

func NewLocker(c *Client) *Locker {
	return &Locker{client: c.GetClient()}
}

func lockKey(key string) string {
	return fmt.Sprintf("hact--lock--%s", key)
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(lockDeadline)
	rkey := lockKey(key)

	for {
		ok, err := l.client.SetNX(ctx, rkey, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			release := func() {
				// Compare-and-delete so an expired lock taken over by
				// another worker is never released from here.
				script := redis.NewScript(`
					if redis.call("get", KEYS[1]) == ARGV[1] then
						return redis.call("del", KEYS[1])
					end
					return 0`)
				script.Run(context.Background(), l.client, []string{rkey}, token)
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryStep):
		}
	}
}

// LocalLocker is an in-process EntityLocker used in tests and single-node
// deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()
	select {
	case <-done:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() {
			<-done
			m.Unlock()
		}()
		return nil, ctx.Err()
	case <-time.After(lockDeadline):
		go func() {
			<-done
			m.Unlock()
		}()
		return nil, ErrLockTimeout
	}
}
