package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// 实时通道事件名
const (
	EventAddUser        = "addUser"
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Envelope 每一帧的外层结构
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AddUserData addUser 载荷，兼容裸ID和 {"user_id": n}
type AddUserData struct {
	UserID uint `json:"user_id"`
}

// UnmarshalJSON 支持 7 / "7" / {"user_id": 7}
func (d *AddUserData) UnmarshalJSON(b []byte) error {
	var n uint
	if err := json.Unmarshal(b, &n); err == nil {
		d.UserID = n
		return nil
	}
	var s json.Number
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := s.Int64()
		if err != nil || v < 0 {
			return fmt.Errorf("invalid user id %q", s)
		}
		d.UserID = uint(v)
		return nil
	}
	var obj struct {
		UserID uint `json:"user_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	d.UserID = obj.UserID
	return nil
}

// SendMessageData sendMessage 载荷
type SendMessageData struct {
	SenderID   uint   `json:"sender_id"`
	ReceiverID uint   `json:"receiver_id"`
	Text       string `json:"text"`
}

// ReceiveMessageData 推送给接收者的载荷
type ReceiveMessageData struct {
	SenderID    uint      `json:"sender_id"`
	MessageText string    `json:"message_text"`
	MessageID   uint      `json:"message_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorData 发给客户端的错误
type ErrorData struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Encode 编码为一帧
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
