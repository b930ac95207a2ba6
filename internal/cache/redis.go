package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{client: client}, nil
}

func (c *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()

	if err != nil {
		if err == redis.Nil {
			return false, nil
		}

		return false, err
	}

	return true, unmarshalJSON(raw, dest)
}

func (c *Redis) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := marshalJSON(val)

	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func marshalJSON(val any) ([]byte, error) {
	return json.Marshal(val)
}

func unmarshalJSON(raw []byte, dest any) error {
	return json.Unmarshal(raw, dest)
}
