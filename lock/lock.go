// Package lock provides the short-lived per-room lock held around the
// availability check and the booking insert.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock not acquired")

type Locker interface {
	// Acquire takes key for at most ttl. The returned func releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RoomKey is the lock key guarding bookings of one room.
func RoomKey(roomID uint) string {
	return fmt.Sprintf("lock:room:%d", roomID)
}

// Redis is a SET NX PX lock. Release only deletes the key when it still
// carries this holder's token.
type Redis struct {
	client *redis.Client
	// wait bounds how long Acquire retries before giving up.
	wait time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func NewRedis(client *redis.Client, wait time.Duration) *Redis {
	return &Redis{client: client, wait: wait}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(r.wait)
	for {
		ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}

	return func() {
		// the caller's ctx may already be done
		_ = releaseScript.Run(context.Background(), r.client, []string{key}, token).Err()
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Local serialises holders of the same key inside one process. It is used
// when no redis is configured and in tests. Like Redis, Acquire waits at most
// wait for a busy key; ttl is not enforced because holders always release.
type Local struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
	wait time.Duration
}

func NewLocal(wait time.Duration) *Local {
	return &Local{keys: make(map[string]chan struct{}), wait: wait}
}

func (l *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	timeout := time.NewTimer(l.wait)
	defer timeout.Stop()

	for {
		l.mu.Lock()
		held, ok := l.keys[key]
		if !ok {
			ch := make(chan struct{})
			l.keys[key] = ch
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.keys, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, ErrNotAcquired
		}
	}
}

// BookingKey serialises ledger writes for one booking.
func BookingKey(bookingID uint) string {
	return fmt.Sprintf("lock:booking:%d", bookingID)
}
