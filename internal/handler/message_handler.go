package handler

import (
	"peoplegrid/internal/service"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *service.MessageService
}

func NewMessageHandler(s *service.MessageService) *MessageHandler {
	return &MessageHandler{service: s}
}

// History 与 :otherUserId 的会话历史
func (h *MessageHandler) History(c *gin.Context) {
	otherID, ok := idParam(c, "otherUserId")
	if !ok {
		return
	}
	messages, err := h.service.History(c.Request.Context(), jwt.GetUserID(c), otherID)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	response.Success(c, toMessageViews(messages))
}

// Unread 按发送者统计的未读数，未启用Redis时为空
func (h *MessageHandler) Unread(c *gin.Context) {
	counts, err := h.service.UnreadCounts(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to load unread counts")
		return
	}
	response.Success(c, counts)
}
