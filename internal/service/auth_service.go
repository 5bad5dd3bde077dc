package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/password"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService 注册与登录
type AuthService struct {
	repo       *repository.UserRepository
	jwtService *jwt.JWTService
}

func NewAuthService(repo *repository.UserRepository, jwtService *jwt.JWTService) *AuthService {
	return &AuthService{repo: repo, jwtService: jwtService}
}

// Register 注册，邮箱和用户名均不可重复
func (s *AuthService) Register(ctx context.Context, username, email, plainPassword string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || plainPassword == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}
	taken, err := s.repo.UsernameTaken(ctx, username, 0)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// 并发注册撞上唯一索引，重新查一次邮箱区分是哪一列冲突
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if exists, checkErr := s.repo.EmailExists(ctx, email); checkErr == nil && exists {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login 邮箱+密码登录，成功返回令牌
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plainPassword == "" {
		return nil, "", ErrInvalidCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}
	if password.NeedsRehash(u.PasswordHash) {
		s.upgradeHash(ctx, u, plainPassword)
	}
	token, err := s.jwtService.GenerateToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// upgradeHash 哈希强度调高后，在登录时顺带升级旧哈希；失败不影响登录
func (s *AuthService) upgradeHash(ctx context.Context, u *model.User, plainPassword string) {
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return
	}
	if err := s.repo.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		logger.Warn("升级密码哈希失败", zap.Uint("user_id", u.ID), zap.Error(err))
		return
	}
	u.PasswordHash = hash
}
