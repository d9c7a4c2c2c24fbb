package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL        = 30 * time.Second
	DefaultRetryDelay = 100 * time.Millisecond
	DefaultRetryCount = 300
	DefaultKeyPrefix  = "regmap:lock:"
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Redis is a Locker backed by SET NX PX. While a lock is held a watchdog
// extends its TTL every third of the TTL, so long stages never lose it.
type Redis struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
	logger     *zap.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetry(count int, delay time.Duration) RedisOption {
	return func(r *Redis) {
		if count > 0 {
			r.retryCount = count
		}
		if delay > 0 {
			r.retryDelay = delay
		}
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func WithLogger(logger *zap.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis creates a Locker on client. The caller owns client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:     client,
		prefix:     DefaultKeyPrefix,
		ttl:        DefaultTTL,
		retryDelay: DefaultRetryDelay,
		retryCount: DefaultRetryCount,
		logger:     zap.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("lock")
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	key = r.prefix + key
	token := uuid.NewString()

	for i := 0; i < r.retryCount; i++ {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("set lock %s: %w", key, err)
		}
		if ok {
			return r.hold(key, token), nil
		}

		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
}

func (r *Redis) hold(key, token string) Unlock {
	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go r.watchdog(watchCtx, key, token, done)

	var once sync.Once
	return func(ctx context.Context) error {
		err := ErrLockNotHeld
		once.Do(func() {
			cancel()
			<-done
			err = r.release(ctx, key, token)
		})
		return err
	}
}

func (r *Redis) release(ctx context.Context, key, token string) error {
	res, err := unlockScript.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotHeld, key)
	}
	return nil
}

func (r *Redis) watchdog(ctx context.Context, key, token string, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := extendScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("failed to extend lock", zap.String("key", key), zap.Error(err))
				}
				continue
			}
			if res == 0 {
				r.logger.Warn("lock lost before release", zap.String("key", key))
				return
			}
		}
	}
}
