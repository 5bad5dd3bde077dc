package service

import "errors"

// 业务错误，handler 按类型映射为HTTP状态码
var (
	// 校验/冲突
	ErrEmailTaken       = errors.New("user with that email already exists")
	ErrUsernameTaken    = errors.New("username is already taken")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSelfFriend       = errors.New("you cannot add yourself as a friend")
	ErrFriendshipExists = errors.New("a friendship request already exists or you are already friends")
	ErrNoFile           = errors.New("no file uploaded")
	ErrEmptyMessage     = errors.New("message text is required")

	// 认证
	ErrInvalidCredentials = errors.New("invalid credentials")

	// 权限
	ErrForbidden = errors.New("you are not authorized to modify this resource")

	// 不存在
	ErrUserNotFound    = errors.New("user not found")
	ErrPostNotFound    = errors.New("post not found")
	ErrRequestNotFound = errors.New("no pending friend request from this user")

	// 上游（媒体托管）
	ErrUploadFailed = errors.New("media upload failed")
)
