package model

import (
	"time"

	"gorm.io/gorm"
)

// FriendshipStatus 好友关系状态
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship 好友关系（无向边）
// 以 (UserOneID, UserTwoID) 存储且 UserOneID < UserTwoID，每对用户至多一行
// ActionUserID 为最近一次状态变更的发起人
type Friendship struct {
	ID           uint             `gorm:"primaryKey"`
	UserOneID    uint             `gorm:"not null;uniqueIndex:idx_friendship_pair"`
	UserTwoID    uint             `gorm:"not null;uniqueIndex:idx_friendship_pair;index"`
	ActionUserID uint             `gorm:"not null"`
	Status       FriendshipStatus `gorm:"type:varchar(16);not null;default:'pending';index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Friendship) TableName() string { return "friendships" }

// CanonicalPair 返回 (low, high) 形式的用户对
func CanonicalPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// BeforeCreate 写入前保证规范顺序
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	f.UserOneID, f.UserTwoID = CanonicalPair(f.UserOneID, f.UserTwoID)
	return nil
}
