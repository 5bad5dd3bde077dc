package repository

import (
	"context"

	"peoplegrid/internal/model"

	"gorm.io/gorm"
)

// FriendshipRepository 好友关系仓储，所有查询均使用规范化的 (low, high) 用户对
type FriendshipRepository struct {
	db *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{db: db}
}

// Get 查询两人之间的边（任意状态）
func (r *FriendshipRepository) Get(ctx context.Context, a, b uint) (*model.Friendship, error) {
	low, high := model.CanonicalPair(a, b)
	var f model.Friendship
	err := r.db.WithContext(ctx).
		Where("user_one_id = ? AND user_two_id = ?", low, high).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreatePending 插入待处理的好友请求
func (r *FriendshipRepository) CreatePending(ctx context.Context, senderID, recipientID uint) (*model.Friendship, error) {
	f := &model.Friendship{
		UserOneID:    senderID,
		UserTwoID:    recipientID,
		ActionUserID: senderID,
		Status:       model.FriendshipPending,
	}
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// Accept 仅当存在由 requesterID 发起的 pending 边时改为 accepted，返回是否更新
func (r *FriendshipRepository) Accept(ctx context.Context, recipientID, requesterID uint) (bool, error) {
	low, high := model.CanonicalPair(recipientID, requesterID)
	res := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_one_id = ? AND user_two_id = ? AND action_user_id = ? AND status = ?",
			low, high, requesterID, model.FriendshipPending).
		Updates(map[string]interface{}{
			"status":         model.FriendshipAccepted,
			"action_user_id": recipientID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPendingRequesters 等待 userID 处理的请求的发起人
func (r *FriendshipRepository) ListPendingRequesters(ctx context.Context, userID uint) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Table("users u").
		Select("u.*").
		Joins("JOIN friendships f ON u.id = f.action_user_id").
		Where("(f.user_one_id = ? OR f.user_two_id = ?) AND f.status = ? AND f.action_user_id <> ?",
			userID, userID, model.FriendshipPending, userID).
		Order("f.created_at ASC").
		Scan(&users).Error
	return users, err
}

// ListFriends 已接受的好友（另一端用户）
func (r *FriendshipRepository) ListFriends(ctx context.Context, userID uint) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Table("users u").
		Select("u.*").
		Joins("JOIN friendships f ON (f.user_one_id = u.id OR f.user_two_id = u.id)").
		Where("(f.user_one_id = ? OR f.user_two_id = ?) AND u.id <> ? AND f.status = ?",
			userID, userID, userID, model.FriendshipAccepted).
		Order("u.username ASC").
		Scan(&users).Error
	return users, err
}
