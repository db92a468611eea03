package initial

import (
	"context"
	"fmt"
	"time"

	"EstateGuru/internal/config"
	"EstateGuru/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
)

// NewRedisClient 连接 Redis；未配置 host 时返回 nil, nil
func NewRedisClient(ctx context.Context, conf *config.Config) (*goredis.Client, error) {
	host := conf.RedisConfig.Host
	port := conf.RedisConfig.Port
	if host == "" {
		zlog.Info("redis not configured, skip")
		return nil, nil
	}
	if port == 0 {
		port = 6379
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	zlog.Info(fmt.Sprintf("redis connecting: %s", addr))

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     conf.RedisConfig.Password,
		DB:           conf.RedisConfig.DB,
		PoolSize:     conf.RedisConfig.PoolSize,
		MinIdleConns: conf.RedisConfig.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	zlog.Info("redis connected")
	return client, nil
}
