package redis

import (
	"context"
	"fmt"
	"time"

	"peoplegrid/config"

	"github.com/redis/go-redis/v9"
)

// Store 封装 Redis 客户端，用于在线状态镜像和未读计数
// nil 的 *Store 可以安全调用，所有操作直接返回
type Store struct {
	client *redis.Client
	prefix string
}

// KeyPrefix 所有键的公共前缀
const KeyPrefix = "peoplegrid:"

// NewStore 使用已有客户端创建 Store
func NewStore(client *redis.Client) *Store {
	return &Store{client: client, prefix: KeyPrefix}
}

// Connect 按配置连接 Redis，未启用时返回 nil
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	return NewStore(client), nil
}

// Enabled 是否已配置 Redis
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Close 关闭Redis连接
func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}

// HealthCheck 检查Redis健康状态
func (s *Store) HealthCheck(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis连接异常: %w", err)
	}
	return nil
}

func (s *Store) key(parts ...interface{}) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += fmt.Sprint(p)
	}
	return k
}
