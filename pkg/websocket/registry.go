package websocket

import "sync"

// Registry 用户ID到当前连接ID的映射，一个用户同一时刻只有一个有效连接
type Registry struct {
	mu     sync.RWMutex
	byUser map[uint]string
}

// NewRegistry 创建空的在线表
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[uint]string)}
}

// Bind 绑定用户到连接，返回被覆盖的旧连接ID
func (r *Registry) Bind(userID uint, connID string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.byUser[userID]
	r.byUser[userID] = connID
	return previous
}

// Lookup 查询用户当前的连接
func (r *Registry) Lookup(userID uint) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// RemoveConn 连接断开时移除仍指向该连接的条目，用户已重新绑定到新连接时不动
func (r *Registry) RemoveConn(connID string) (userID uint, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, cid := range r.byUser {
		if cid == connID {
			delete(r.byUser, uid)
			return uid, true
		}
	}
	return 0, false
}

// IsOnline 用户是否有绑定的连接
func (r *Registry) IsOnline(userID uint) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Len 在线用户数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
