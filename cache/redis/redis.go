package redis

import (
	"context"
	"crypto/tls"
	"log"
	"strconv"
	"time"

	"github.com/dayzy/notes/cache"
	"github.com/redis/go-redis/v9"
)

type RedisNotesCache struct {
	client redis.UniversalClient
}

func NewRedisNotesCache(ctx context.Context, devMode bool, redis_endpoint string) (*RedisNotesCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redis_endpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redis_endpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisNotesCache{client: client}, nil
}

func (redisCache *RedisNotesCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisNotesCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Hash tags keep every key of one publication in the same cluster slot
func buildPublicationKey(code string) string {
	return "share:{" + code + "}:doc"
}

func buildWindowKey(key string, window time.Duration, now time.Time) string {
	slot := now.UnixNano() / int64(window)
	return "window:{" + key + "}:" + strconv.FormatInt(slot, 10)
}

const cacheTTL = 10 * time.Minute

func (redisCache *RedisNotesCache) GetPublication(ctx context.Context, code string) ([]byte, error) {
	data, err := redisCache.client.Get(ctx, buildPublicationKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

func (redisCache *RedisNotesCache) SetPublication(ctx context.Context, code string, data []byte) error {
	return redisCache.client.Set(ctx, buildPublicationKey(code), data, cacheTTL).Err()
}

func (redisCache *RedisNotesCache) InvalidatePublications(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	// Keys of different publications hash to different slots, so delete one
	// at a time
	for _, code := range codes {
		if err := redisCache.client.Del(ctx, buildPublicationKey(code)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// IncrementWindow implements a fixed-window counter: one key per window
// slot, expiring with the slot.
func (redisCache *RedisNotesCache) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	windowKey := buildWindowKey(key, window, time.Now())

	pipe := redisCache.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
