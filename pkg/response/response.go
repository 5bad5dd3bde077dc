package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构，Code 为0表示成功，失败时等于HTTP状态码
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OK 构造成功响应体
func OK(message string, data interface{}) Response {
	return Response{Code: 0, Message: message, Data: data}
}

// Fail 构造失败响应体
func Fail(status int, message string) Response {
	return Response{Code: status, Message: message}
}

// Success 200 + 默认消息
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, OK("success", data))
}

// SuccessWithMessage 200 + 自定义消息
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, OK(message, data))
}

// Created 201
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, OK(message, data))
}

// Error 终止后续处理并写出失败响应
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Fail(status, message))
}

func BadRequest(c *gin.Context, message string)    { Error(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string)  { Error(c, http.StatusUnauthorized, message) }
func Forbidden(c *gin.Context, message string)     { Error(c, http.StatusForbidden, message) }
func NotFound(c *gin.Context, message string)      { Error(c, http.StatusNotFound, message) }
func Conflict(c *gin.Context, message string)      { Error(c, http.StatusConflict, message) }
func InternalError(c *gin.Context, message string) { Error(c, http.StatusInternalServerError, message) }
