package model

import (
	"time"
)

// Post 帖子模型，仅作者可删除
type Post struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Content   string    `gorm:"type:text;not null"`
	Title     string    `gorm:"type:varchar(255)"`
	PostType  string    `gorm:"type:varchar(32);default:'text'"`
	MediaURL  *string   `gorm:"type:varchar(512)"`
	CreatedAt time.Time `gorm:"index"`

	User User `gorm:"foreignKey:UserID"`
}

func (Post) TableName() string { return "posts" }

// Comment 评论模型
type Comment struct {
	ID          uint      `gorm:"primaryKey"`
	PostID      uint      `gorm:"not null;index"`
	UserID      uint      `gorm:"not null;index"`
	CommentText string    `gorm:"type:text;not null"`
	CreatedAt   time.Time

	User User `gorm:"foreignKey:UserID"`
}

func (Comment) TableName() string { return "comments" }

// Like 点赞，(UserID, PostID) 唯一，存在即已点赞
type Like struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	PostID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }
