package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// UnreadTTL 未读计数过期时间
const UnreadTTL = 7 * 24 * time.Hour

func (s *Store) unreadKey(receiverID uint) string { return s.key("unread", receiverID) }

// IncrementUnread 接收者离线时累加来自 senderID 的未读数
func (s *Store) IncrementUnread(ctx context.Context, receiverID, senderID uint) error {
	if !s.Enabled() {
		return nil
	}
	key := s.unreadKey(receiverID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, strconv.FormatUint(uint64(senderID), 10), 1)
	pipe.Expire(ctx, key, UnreadTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("增加未读消息计数失败: %w", err)
	}
	return nil
}

// ClearUnread 读取会话后清空来自 senderID 的未读数
func (s *Store) ClearUnread(ctx context.Context, receiverID, senderID uint) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.client.HDel(ctx, s.unreadKey(receiverID), strconv.FormatUint(uint64(senderID), 10)).Err(); err != nil {
		return fmt.Errorf("清空未读消息计数失败: %w", err)
	}
	return nil
}

// UnreadCounts 获取每个发送者的未读数
func (s *Store) UnreadCounts(ctx context.Context, receiverID uint) (map[uint]int64, error) {
	counts := make(map[uint]int64)
	if !s.Enabled() {
		return counts, nil
	}
	raw, err := s.client.HGetAll(ctx, s.unreadKey(receiverID)).Result()
	if err != nil {
		return nil, fmt.Errorf("获取未读消息计数失败: %w", err)
	}
	for field, value := range raw {
		sender, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		counts[uint(sender)] = n
	}
	return counts, nil
}
