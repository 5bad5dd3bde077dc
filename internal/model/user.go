package model

import (
	"time"
)

// User 用户模型
// 用户名、邮箱唯一；密码仅存储哈希，不存储明文
type User struct {
	ID                 uint      `gorm:"primaryKey"`
	Username           string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Email              string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	PasswordHash       string    `gorm:"type:varchar(255);not null"`
	ProfilePictureURL  string    `gorm:"type:varchar(512)"`
	Bio                string    `gorm:"type:text"`
	RelationshipStatus string    `gorm:"type:varchar(64)"`
	Age                *int      `gorm:"type:int"`
	Pronouns           string    `gorm:"type:varchar(64)"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (User) TableName() string { return "users" }
