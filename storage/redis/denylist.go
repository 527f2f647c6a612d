// Package redisdb keeps short lived shared state in Redis.
package redisdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/academia/core"
)

// Open connects to the Redis server of conf and checks it answers.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// Denylist stores revoked token ids with a TTL matching the token expiry, so entries clean themselves up.
type Denylist struct {
	client  redis.Cmdable
	prefix  string
	nowFunc func() time.Time // mockable
}

func NewDenylist(client redis.Cmdable, appName string) *Denylist {
	return &Denylist{
		client:  client,
		prefix:  core.CleanString(appName, true /* lower */) + ":revoked:",
		nowFunc: time.Now,
	}
}

func (d *Denylist) key(tokenID string) string {
	return d.prefix + tokenID
}

func (d *Denylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.nowFunc())
	if ttl <= 0 {
		return nil // already expired
	}
	return errors.Wrap(d.client.Set(ctx, d.key(tokenID), "1", ttl).Err(), "revoking token")
}

func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}
