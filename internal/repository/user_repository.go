package repository

import (
	"context"
	"strings"

	"peoplegrid/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailExists 邮箱是否已注册
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// UsernameTaken 用户名是否被 exceptID 以外的账号占用，exceptID 为0时检查全部
func (r *UserRepository) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// UpdateProfile 更新资料字段并返回最新记录
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) (*model.User, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	return r.GetByID(ctx, id)
}

// UpdatePasswordHash 替换密码哈希
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password_hash", hash).Error
}

// UpdateProfilePicture 保存头像URL
func (r *UserRepository) UpdateProfilePicture(ctx context.Context, id uint, url string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("profile_picture_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SearchByUsername 用户名不区分大小写的子串匹配，排除 excludeID
func (r *UserRepository) SearchByUsername(ctx context.Context, query string, excludeID uint, limit int) ([]model.User, error) {
	var users []model.User
	pattern := "%" + strings.ToLower(query) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? AND id <> ?", pattern, excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
