package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"peoplegrid/config"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	relayTimeout = 5 * time.Second
	maxFrameSize = 64 << 10
)

// MessageRelay 持久化并转发一条私信
type MessageRelay interface {
	Relay(ctx context.Context, senderID, receiverID uint, text string) error
}

// RejectedError 转发被业务规则拒绝，Reason 可以直接展示给客户端
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

// Handler 实时通道入口
type Handler struct {
	hub      *Hub
	jwt      *jwt.JWTService
	relay    MessageRelay
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewHandler 创建实时通道处理器
func NewHandler(hub *Hub, jwtService *jwt.JWTService, relay MessageRelay, cfg config.WebSocketConfig) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= cfg.PingInterval {
		cfg.ReadTimeout = cfg.PingInterval * 3
	}
	// 在线状态只在pong时续期，TTL 必须覆盖一次完整的读超时
	hub.SetPresenceTTL(cfg.ReadTimeout + cfg.PingInterval)
	return &Handler{
		hub:   hub,
		jwt:   jwtService,
		relay: relay,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许跨域
			},
		},
	}
}

// ServeWS Gin路由处理函数，token 从 query 或 Authorization 头读取
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = jwt.ExtractBearer(c.GetHeader("Authorization"))
	}
	if token == "" {
		response.Unauthorized(c, "missing token")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}
	userID, err := claims.UserID()
	if err != nil || userID == 0 {
		response.Unauthorized(c, "invalid token subject")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.Error(err))
		return
	}

	client := h.hub.Register(userID, conn)
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
	}()

	go h.writePump(client)
	h.readPump(client)
}

// writePump 写协程，负责所有写操作和定时ping
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("写入WebSocket失败", zap.String("conn_id", client.ID), zap.Error(err))
				_ = client.Conn.Close()
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = client.Conn.Close()
				return
			}
		}
	}
}

// readPump 读循环，超时未收到任何数据（包括pong）则断开
func (h *Handler) readPump(client *Client) {
	conn := client.Conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		h.hub.Refresh(client)
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug("WebSocket异常断开", zap.String("conn_id", client.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		h.dispatch(client, payload)
	}
}

// dispatch 按事件名分发
func (h *Handler) dispatch(client *Client, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
		h.hub.sendError(client, "", "malformed frame")
		return
	}

	switch env.Event {
	case EventAddUser:
		h.handleAddUser(client, env.Data)
	case EventSendMessage:
		h.handleSendMessage(client, env.Data)
	default:
		h.hub.sendError(client, env.Event, "unknown event")
	}
}

func (h *Handler) handleAddUser(client *Client, data json.RawMessage) {
	var in AddUserData
	if err := json.Unmarshal(data, &in); err != nil || in.UserID == 0 {
		h.hub.sendError(client, EventAddUser, "invalid user id")
		return
	}
	if in.UserID != client.UserID {
		logger.Warn("addUser 与token用户不一致", zap.Uint("token_user", client.UserID), zap.Uint("claimed", in.UserID))
		h.hub.sendError(client, EventAddUser, "user id does not match token")
		return
	}
	h.hub.Bind(in.UserID, client)
}

func (h *Handler) handleSendMessage(client *Client, data json.RawMessage) {
	var in SendMessageData
	if err := json.Unmarshal(data, &in); err != nil {
		h.hub.sendError(client, EventSendMessage, "invalid payload")
		return
	}
	senderID, bound := h.hub.boundUser(client)
	if !bound {
		h.hub.sendError(client, EventSendMessage, "addUser required before sending")
		return
	}
	if in.SenderID != 0 && in.SenderID != senderID {
		h.hub.sendError(client, EventSendMessage, "sender does not match connection")
		return
	}
	if strings.TrimSpace(in.Text) == "" || in.ReceiverID == 0 {
		h.hub.sendError(client, EventSendMessage, "receiver_id and text are required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	if err := h.relay.Relay(ctx, senderID, in.ReceiverID, in.Text); err != nil {
		message := "failed to send message"
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			message = rejected.Reason
		}
		logger.Warn("私信转发失败", zap.Uint("sender_id", senderID), zap.Uint("receiver_id", in.ReceiverID), zap.Error(err))
		h.hub.sendError(client, EventSendMessage, message)
	}
}
