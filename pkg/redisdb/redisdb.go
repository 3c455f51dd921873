package redisdb

import (
	"context"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Client bundles the redis connection with its lock client so callers get
// both from a single constructor instead of package-level globals.
type Client struct {
	Redis  *redis.Client
	Locker *redislock.Client
}

func New(ctx context.Context, addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 50,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{
		Redis:  rdb,
		Locker: redislock.New(rdb),
	}, nil
}

func (c *Client) Close() error {
	return c.Redis.Close()
}
