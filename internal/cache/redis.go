package cache

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"moff.io/moff-connect/internal/config"
	"moff.io/moff-connect/pkg/errors"
)

// NewRedis connects to redis and pings it once.
func NewRedis(ctx context.Context, cred *config.DBCredential) (*redis.Client, error) {
	db, _ := strconv.ParseInt(cred.Database, 10, 64)
	client := redis.NewClient(&redis.Options{
		Addr:     cred.GetRedisAddress(),
		Password: cred.Password,
		DB:       int(db),
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.WrapfAndReport(err, "ping to redis %s", cred.GetRedisAddress())
	}
	return client, nil
}
