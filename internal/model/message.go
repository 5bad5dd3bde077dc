package model

import (
	"time"
)

// Message 私聊消息，只追加不修改
type Message struct {
	ID          uint      `gorm:"primaryKey"`
	SenderID    uint      `gorm:"not null;index:idx_message_pair,priority:1"`
	ReceiverID  uint      `gorm:"not null;index:idx_message_pair,priority:2"`
	MessageText string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"index"`
}

func (Message) TableName() string { return "messages" }

// All 返回需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{&User{}, &Friendship{}, &Post{}, &Comment{}, &Like{}, &Message{}}
}
