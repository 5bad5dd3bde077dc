package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// PresenceTTL 默认在线状态过期时间，心跳会续期
const PresenceTTL = 2 * time.Minute

func presenceTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return PresenceTTL
	}
	return ttl
}

func (s *Store) presenceKey(userID uint) string { return s.key("presence", userID) }
func (s *Store) onlineKey() string             { return s.key("online") }

// SetOnline 记录用户在线及其连接ID，ttl<=0 时使用 PresenceTTL
func (s *Store) SetOnline(ctx context.Context, userID uint, connID string, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.presenceKey(userID), connID, presenceTTL(ttl))
	pipe.SAdd(ctx, s.onlineKey(), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("设置用户在线状态失败: %w", err)
	}
	return nil
}

// RefreshOnline 延长在线状态TTL
func (s *Store) RefreshOnline(ctx context.Context, userID uint, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.client.Expire(ctx, s.presenceKey(userID), presenceTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("刷新用户在线状态失败: %w", err)
	}
	return nil
}

// SetOffline 移除用户在线状态
func (s *Store) SetOffline(ctx context.Context, userID uint) error {
	if !s.Enabled() {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.presenceKey(userID))
	pipe.SRem(ctx, s.onlineKey(), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("移除用户在线状态失败: %w", err)
	}
	return nil
}

// IsOnline 检查用户是否在线
func (s *Store) IsOnline(ctx context.Context, userID uint) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("检查用户在线状态失败: %w", err)
	}
	return n > 0, nil
}

// OnlineUsers 获取在线用户ID列表，顺带清理已过期的成员
func (s *Store) OnlineUsers(ctx context.Context) ([]uint, error) {
	if !s.Enabled() {
		return nil, nil
	}
	members, err := s.client.SMembers(ctx, s.onlineKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("获取在线用户列表失败: %w", err)
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		online, err := s.IsOnline(ctx, uint(id))
		if err != nil {
			return nil, err
		}
		if !online {
			s.client.SRem(ctx, s.onlineKey(), m)
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
