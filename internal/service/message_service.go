package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/metrics"
	"peoplegrid/pkg/redis"
	"peoplegrid/pkg/websocket"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deliverer 将事件推送到用户当前的实时连接，无连接时返回 false
type Deliverer interface {
	Deliver(userID uint, event string, data interface{}) bool
}

// MessageService 私聊消息：先持久化，再尝试实时投递
type MessageService struct {
	messages  *repository.MessageRepository
	users     *repository.UserRepository
	deliverer Deliverer
	store     *redis.Store
}

// NewMessageService 创建MessageService实例，store 可以为 nil
func NewMessageService(messages *repository.MessageRepository, users *repository.UserRepository, deliverer Deliverer, store *redis.Store) *MessageService {
	return &MessageService{
		messages:  messages,
		users:     users,
		deliverer: deliverer,
		store:     store,
	}
}

// SendMessage 持久化消息后推送给接收者，返回消息和是否已实时送达
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverID uint, text string) (*model.Message, bool, error) {
	if strings.TrimSpace(text) == "" {
		return nil, false, ErrEmptyMessage
	}
	if receiverID == 0 {
		return nil, false, fmt.Errorf("%w: receiver is required", ErrInvalidInput)
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, fmt.Errorf("load receiver: %w", err)
	}

	message := &model.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		MessageText: text,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, false, fmt.Errorf("save message: %w", err)
	}

	delivered := false
	if s.deliverer != nil {
		delivered = s.deliverer.Deliver(receiverID, websocket.EventReceiveMessage, websocket.ReceiveMessageData{
			SenderID:    senderID,
			MessageText: text,
			MessageID:   message.ID,
			CreatedAt:   message.CreatedAt,
		})
	}

	if delivered {
		metrics.MessagesRelayed.WithLabelValues(metrics.OutcomeDelivered).Inc()
	} else {
		metrics.MessagesRelayed.WithLabelValues(metrics.OutcomeStored).Inc()
		if err := s.store.IncrementUnread(ctx, receiverID, senderID); err != nil {
			logger.Warn("更新未读计数失败", zap.Uint("receiver_id", receiverID), zap.Error(err))
		}
	}

	return message, delivered, nil
}

// Relay 实现实时通道的 sendMessage 事件，业务校验失败转为可展示的错误
func (s *MessageService) Relay(ctx context.Context, senderID, receiverID uint, text string) error {
	_, _, err := s.SendMessage(ctx, senderID, receiverID, text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUserNotFound):
		return &websocket.RejectedError{Reason: err.Error()}
	default:
		return err
	}
}

// History 双向会话历史，按时间正序；读取后清空来自对方的未读计数
func (s *MessageService) History(ctx context.Context, callerID, otherUserID uint) ([]model.Message, error) {
	messages, err := s.messages.Conversation(ctx, callerID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if err := s.store.ClearUnread(ctx, callerID, otherUserID); err != nil {
		logger.Warn("清空未读计数失败", zap.Uint("user_id", callerID), zap.Error(err))
	}
	return messages, nil
}

// UnreadCounts 离线期间收到的未读数（按发送者）
func (s *MessageService) UnreadCounts(ctx context.Context, callerID uint) (map[uint]int64, error) {
	counts, err := s.store.UnreadCounts(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("load unread counts: %w", err)
	}
	return counts, nil
}
