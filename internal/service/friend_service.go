package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"

	"gorm.io/gorm"
)

// SearchLimit 用户搜索最多返回条数
const SearchLimit = 10

// PresenceChecker 判断用户当前是否有活跃连接
type PresenceChecker interface {
	IsOnline(userID uint) bool
}

// FriendService 社交关系图
type FriendService struct {
	friends  *repository.FriendshipRepository
	users    *repository.UserRepository
	presence PresenceChecker
}

func NewFriendService(friends *repository.FriendshipRepository, users *repository.UserRepository, presence PresenceChecker) *FriendService {
	return &FriendService{friends: friends, users: users, presence: presence}
}

// Search 用户名子串搜索，空查询返回空结果
func (s *FriendService) Search(ctx context.Context, callerID uint, text string) ([]model.User, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []model.User{}, nil
	}
	users, err := s.users.SearchByUsername(ctx, text, callerID, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// SendRequest 发送好友请求，任一方向已存在边时拒绝
func (s *FriendService) SendRequest(ctx context.Context, senderID, recipientID uint) (*model.Friendship, error) {
	if senderID == recipientID {
		return nil, ErrSelfFriend
	}
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load recipient: %w", err)
	}

	_, err := s.friends.Get(ctx, senderID, recipientID)
	if err == nil {
		return nil, ErrFriendshipExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load friendship: %w", err)
	}

	f, err := s.friends.CreatePending(ctx, senderID, recipientID)
	if err != nil {
		// 并发请求撞上唯一索引
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrFriendshipExists
		}
		return nil, fmt.Errorf("create friendship: %w", err)
	}
	return f, nil
}

// ListPending 等待调用者处理的请求
func (s *FriendService) ListPending(ctx context.Context, callerID uint) ([]model.User, error) {
	users, err := s.friends.ListPendingRequesters(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return users, nil
}

// AcceptRequest 接受 requesterID 发来的请求，不存在匹配的 pending 边时返回 ErrRequestNotFound
func (s *FriendService) AcceptRequest(ctx context.Context, recipientID, requesterID uint) error {
	if recipientID == requesterID {
		return ErrSelfFriend
	}
	ok, err := s.friends.Accept(ctx, recipientID, requesterID)
	if err != nil {
		return fmt.Errorf("accept friendship: %w", err)
	}
	if !ok {
		return ErrRequestNotFound
	}
	return nil
}

// ListFriends 已接受的好友
func (s *FriendService) ListFriends(ctx context.Context, callerID uint) ([]model.User, error) {
	users, err := s.friends.ListFriends(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return users, nil
}

// ListOnlineFriends 当前在线的好友
func (s *FriendService) ListOnlineFriends(ctx context.Context, callerID uint) ([]model.User, error) {
	friends, err := s.ListFriends(ctx, callerID)
	if err != nil {
		return nil, err
	}
	online := make([]model.User, 0, len(friends))
	for _, f := range friends {
		if s.presence != nil && s.presence.IsOnline(f.ID) {
			online = append(online, f)
		}
	}
	return online, nil
}
