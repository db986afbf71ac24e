package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("practitioner day lock not acquired")
)

// Locker serialises booking work per practitioner and calendar day
type Locker interface {
	WithPractitionerDayLock(ctx context.Context, practitionerID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error
}

type LockOptions struct {
	TTL        time.Duration // how long a lock key lives
	Retries    int           // extra acquire attempts after the first
	RetryDelay time.Duration // pause between attempts
}

type redisDayLocker struct {
	client *redis.Client
	opts   LockOptions
}

// NewRedisDayLocker creates a locker that uses one Redis key per practitioner day
func NewRedisDayLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	return &redisDayLocker{
		client: client,
		opts:   opts,
	}
}

// DayLockKey names the lock for one practitioner on the calendar day of day.
func DayLockKey(practitionerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("lock:practitioner:%s:%s", practitionerID.String(), day.Format("2006-01-02"))
}

func (l *redisDayLocker) WithPractitionerDayLock(ctx context.Context, practitionerID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	key := DayLockKey(practitionerID, day)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisDayLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire practitioner day lock: %w", err)
		}
		if ok {
			return nil
		}
		if attempt >= l.opts.Retries {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opts.RetryDelay):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release practitioner day lock: %w", err)
	}
	return nil
}
