package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisOptions configures RedisLocker. A held lock is renewed every TTL/3
// until released, so TTL only bounds how long a crashed holder blocks the
// conversation.
type RedisOptions struct {
	Prefix       string
	TTL          time.Duration
	PollInterval time.Duration
}

// RedisLocker serializes turns of one conversation across API instances.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger zerolog.Logger
}

var _ ports.ConversationLocker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, opts RedisOptions, logger zerolog.Logger) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "salesbot:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	return &RedisLocker{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		poll:   opts.PollInterval,
		logger: logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key := l.prefix + conversationID
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.WrapError(domain.ErrTemporary, "acquire conversation lock", ctx.Err())
			}
			return nil, domain.WrapError(domain.ErrTemporary, "acquire conversation lock", fmt.Errorf("redis setnx: %w", err))
		}
		if ok {
			stop := make(chan struct{})
			go l.keepAlive(key, token, stop)
			return l.releaser(key, token, stop), nil
		}
		select {
		case <-ctx.Done():
			return nil, domain.WrapError(domain.ErrTemporary, "acquire conversation lock", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3+time.Second)
		renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("conversation_lock_renew_failed")
			continue
		}
		if renewed == 0 {
			l.logger.Error().Str("key", key).Msg("conversation_lock_lost")
			return
		}
	}
}

func (l *RedisLocker) releaser(key, token string, stop chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn().Err(err).Str("key", key).Msg("conversation_lock_release_failed")
			}
		})
	}
}
