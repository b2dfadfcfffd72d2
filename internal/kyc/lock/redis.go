package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kyccase/internal/kyc/ports"
	id "kyccase/pkg/domain"
	"kyccase/pkg/platform/sentinel"
)

const (
	subjectKeyPrefix = "kyc:lock:subject:"
	jobKeyPrefix     = "kyc:lock:job:"

	defaultTTL   = 2 * time.Minute
	defaultRetry = 100 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL under the same token check.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a SETNX-based SubjectLocker shared by all replicas.
// A live holder refreshes its key every TTL/3, so the TTL only bounds how
// long a crashed holder can block a subject or job.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

var _ ports.SubjectLocker = (*Redis)(nil)

type RedisOption func(*Redis)

func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL, retry: defaultRetry, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire polls SETNX until the subject lock is held or ctx ends.
func (r *Redis) Acquire(ctx context.Context, subjectID id.SubjectID) (func(), error) {
	key := subjectKeyPrefix + subjectID.String()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		release, ok, err := r.try(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryJob takes a named job lock without waiting. acquired is false when
// another replica is already running the job.
func (r *Redis) TryJob(ctx context.Context, job string) (release func(), acquired bool, err error) {
	return r.try(ctx, jobKeyPrefix+job)
}

func (r *Redis) try(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	go r.keepAlive(context.WithoutCancel(ctx), key, token, stop)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			// release must survive a cancelled request context
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.client, []string{key}, token).Err(); err != nil {
				r.logger.WarnContext(relCtx, "failed to release lock", "key", key, "error", err)
			}
		})
	}
	return release, true, nil
}

func (r *Redis) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		renewCtx, cancel := context.WithTimeout(ctx, r.ttl/3)
		held, err := renewScript.Run(renewCtx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "failed to renew lock", "key", key, "error", err)
		case held == 0:
			r.logger.WarnContext(ctx, "lock lost before release", "key", key)
			return
		}
	}
}
