package websocket

import (
	"context"
	"sync"
	"time"

	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/metrics"
	"peoplegrid/pkg/redis"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 一条WebSocket连接
// ID: 连接ID，每次连接生成
// UserID: token 中的用户，addUser 只能绑定这个用户
// Send: 待写出的帧
type Client struct {
	ID     string
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub 管理所有连接以及用户到连接的绑定
type Hub struct {
	registry *Registry
	store    *redis.Store
	buffer   int
	// presenceTTL 为0时由 redis.PresenceTTL 兜底
	presenceTTL time.Duration

	lock    sync.RWMutex
	clients map[string]*Client
}

// NewHub 创建Hub，store 为 nil 时不镜像在线状态
func NewHub(store *redis.Store, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		registry: NewRegistry(),
		store:    store,
		buffer:   sendBuffer,
		clients:  make(map[string]*Client),
	}
}

// SetPresenceTTL 设置Redis在线状态的过期时间，需在接受连接前调用
func (h *Hub) SetPresenceTTL(ttl time.Duration) {
	h.presenceTTL = ttl
}

// Registry 在线表
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register 登记新连接并分配连接ID
func (h *Hub) Register(userID uint, conn *websocket.Conn) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, h.buffer),
	}

	h.lock.Lock()
	h.clients[client.ID] = client
	h.lock.Unlock()

	metrics.WSConnections.Inc()
	logger.Debug("WebSocket连接建立", zap.String("conn_id", client.ID), zap.Uint("user_id", userID))
	return client
}

// Unregister 移除连接，只有在线表仍指向该连接时才视为下线
func (h *Hub) Unregister(client *Client) {
	h.lock.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.lock.Unlock()
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	h.lock.Unlock()

	metrics.WSConnections.Dec()

	if userID, removed := h.registry.RemoveConn(client.ID); removed {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.store.SetOffline(ctx, userID); err != nil {
			logger.Warn("更新Redis离线状态失败", zap.Uint("user_id", userID), zap.Error(err))
		}
		logger.Info("用户下线", zap.Uint("user_id", userID), zap.String("conn_id", client.ID))
	}
}

// Bind 处理 addUser：把用户绑定到该连接，覆盖旧绑定
func (h *Hub) Bind(userID uint, client *Client) {
	previous := h.registry.Bind(userID, client.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.store.SetOnline(ctx, userID, client.ID, h.presenceTTL); err != nil {
		logger.Warn("更新Redis在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
	}
	logger.Info("用户上线", zap.Uint("user_id", userID), zap.String("conn_id", client.ID), zap.String("previous_conn", previous))
}

// Refresh 心跳续期在线状态
func (h *Hub) Refresh(client *Client) {
	userID, ok := h.boundUser(client)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.store.RefreshOnline(ctx, userID, h.presenceTTL); err != nil {
		logger.Debug("刷新在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// boundUser 连接当前绑定的用户
func (h *Hub) boundUser(client *Client) (uint, bool) {
	connID, ok := h.registry.Lookup(client.UserID)
	if !ok || connID != client.ID {
		return 0, false
	}
	return client.UserID, true
}

// IsOnline 用户是否有实时连接
func (h *Hub) IsOnline(userID uint) bool {
	return h.registry.IsOnline(userID)
}

// Deliver 推送事件到用户当前连接，用户不在线或队列已满时返回 false
func (h *Hub) Deliver(userID uint, event string, data interface{}) bool {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	frame, err := Encode(event, data)
	if err != nil {
		logger.Error("编码事件失败", zap.String("event", event), zap.Error(err))
		return false
	}
	return h.sendTo(connID, frame)
}

// sendError 给连接回一个 error 事件
func (h *Hub) sendError(client *Client, event, message string) {
	frame, err := Encode(EventError, ErrorData{Event: event, Message: message})
	if err != nil {
		return
	}
	h.sendTo(client.ID, frame)
}

func (h *Hub) sendTo(connID string, frame []byte) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	select {
	case client.Send <- frame:
		return true
	default:
		logger.Warn("发送队列已满，丢弃消息", zap.String("conn_id", connID))
		return false
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Shutdown 关闭所有连接，读循环随之退出并完成清理
func (h *Hub) Shutdown() {
	h.lock.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.Conn)
	}
	h.lock.RUnlock()

	deadline := time.Now().Add(time.Second)
	for _, conn := range conns {
		if conn == nil {
			continue
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
		_ = conn.Close()
	}
}
