package handler

import (
	"peoplegrid/internal/service"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
)

type FriendHandler struct {
	service *service.FriendService
}

func NewFriendHandler(s *service.FriendService) *FriendHandler {
	return &FriendHandler{service: s}
}

// Search 按用户名搜索 ?query=
func (h *FriendHandler) Search(c *gin.Context) {
	users, err := h.service.Search(c.Request.Context(), jwt.GetUserID(c), c.Query("query"))
	if err != nil {
		respondError(c, err, "failed to search users")
		return
	}
	response.Success(c, toPublicUsers(users))
}

// SendRequest 向 :recipientId 发送好友请求
func (h *FriendHandler) SendRequest(c *gin.Context) {
	recipientID, ok := idParam(c, "recipientId")
	if !ok {
		return
	}
	f, err := h.service.SendRequest(c.Request.Context(), jwt.GetUserID(c), recipientID)
	if err != nil {
		respondError(c, err, "failed to send friend request")
		return
	}
	response.Created(c, "friend request sent", FriendshipView{
		UserOneID:    f.UserOneID,
		UserTwoID:    f.UserTwoID,
		Status:       string(f.Status),
		ActionUserID: f.ActionUserID,
	})
}

// Pending 等待自己处理的请求
func (h *FriendHandler) Pending(c *gin.Context) {
	users, err := h.service.ListPending(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to load pending requests")
		return
	}
	response.Success(c, toPublicUsers(users))
}

// Accept 接受 :requesterId 的请求
func (h *FriendHandler) Accept(c *gin.Context) {
	requesterID, ok := idParam(c, "requesterId")
	if !ok {
		return
	}
	if err := h.service.AcceptRequest(c.Request.Context(), jwt.GetUserID(c), requesterID); err != nil {
		respondError(c, err, "failed to accept friend request")
		return
	}
	response.SuccessWithMessage(c, "friend request accepted", nil)
}

// List 好友列表
func (h *FriendHandler) List(c *gin.Context) {
	users, err := h.service.ListFriends(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to load friends")
		return
	}
	response.Success(c, toPublicUsers(users))
}

// Online 在线好友
func (h *FriendHandler) Online(c *gin.Context) {
	users, err := h.service.ListOnlineFriends(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to load online friends")
		return
	}
	response.Success(c, toPublicUsers(users))
}
