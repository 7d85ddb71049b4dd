package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const claimKeyPrefix = "inbrentory:claim:"

// releaseScript deletes the claim only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisDeliveryGuard struct {
	client *redis.Client
}

func NewRedisDeliveryGuard(addr string, password string, db int) *RedisDeliveryGuard {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDeliveryGuard{client: client}
}

func (g *RedisDeliveryGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisDeliveryGuard) Close() error {
	return g.client.Close()
}

func (g *RedisDeliveryGuard) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := newClaimToken()
	ok, err := g.client.SetNX(ctx, claimKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (g *RedisDeliveryGuard) Release(ctx context.Context, key string, token string) error {
	err := releaseScript.Run(ctx, g.client, []string{claimKeyPrefix + key}, token).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
