package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端包装器
type Client struct {
	rdb     *redis.Client
	channel string
}

// NewClient 创建新的Redis客户端，快照发布到 channel
func NewClient(addr string, password string, db int, channel string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := &Client{
		rdb:     rdb,
		channel: channel,
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return client, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish 将 v 序列化为 JSON 后发布，返回收到消息的订阅者数量
func (c *Client) Publish(ctx context.Context, v any) (int64, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}
	return c.rdb.Publish(ctx, c.channel, payload).Result()
}

// Subscribe 订阅快照频道
func (c *Client) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, c.channel)
}

// Channel 发布频道名
func (c *Client) Channel() string {
	return c.channel
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
