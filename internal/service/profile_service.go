package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/pkg/media"

	"gorm.io/gorm"
)

// ProfileUpdate 可修改的资料字段，Username 为空时保持不变
type ProfileUpdate struct {
	Username           string
	Bio                string
	RelationshipStatus string
	Age                *int
	Pronouns           string
}

// ProfileService 个人资料
type ProfileService struct {
	repo     *repository.UserRepository
	uploader media.Uploader
	folder   string
}

func NewProfileService(repo *repository.UserRepository, uploader media.Uploader, folder string) *ProfileService {
	return &ProfileService{repo: repo, uploader: uploader, folder: folder}
}

// GetProfile 获取调用者自己的资料
func (s *ProfileService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return u, nil
}

// UpdateProfile 更新资料，用户名被他人占用时返回 ErrUsernameTaken
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*model.User, error) {
	if upd.Age != nil && (*upd.Age < 0 || *upd.Age > 150) {
		return nil, fmt.Errorf("%w: age out of range", ErrInvalidInput)
	}

	fields := map[string]interface{}{
		"bio":                 upd.Bio,
		"relationship_status": upd.RelationshipStatus,
		"age":                 upd.Age,
		"pronouns":            upd.Pronouns,
	}

	if username := strings.TrimSpace(upd.Username); username != "" {
		taken, err := s.repo.UsernameTaken(ctx, username, userID)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		fields["username"] = username
	}

	u, err := s.repo.UpdateProfile(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		// 检查与更新之间用户名被抢占；users 上只有用户名这一个可更新的唯一列
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// UploadPhoto 上传头像到媒体托管并保存返回的URL
func (s *ProfileService) UploadPhoto(ctx context.Context, userID uint, file io.Reader) (string, error) {
	if file == nil {
		return "", ErrNoFile
	}
	url, err := s.uploader.Upload(ctx, s.folder, file)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := s.repo.UpdateProfilePicture(ctx, userID, url); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("save profile picture: %w", err)
	}
	return url, nil
}
