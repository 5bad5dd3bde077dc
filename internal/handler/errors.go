package handler

import (
	"errors"
	"strconv"

	"peoplegrid/internal/service"
	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 业务错误映射为HTTP状态码；未知错误记录原因，只返回通用信息
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrSelfFriend),
		errors.Is(err, service.ErrNoFile),
		errors.Is(err, service.ErrEmptyMessage):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrFriendshipExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrUploadFailed):
		logger.Error("媒体上传失败", zap.String("path", c.FullPath()), zap.Error(err))
		response.InternalError(c, service.ErrUploadFailed.Error())
	default:
		logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		response.InternalError(c, fallback)
	}
}

// idParam 解析路径中的数字ID
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
