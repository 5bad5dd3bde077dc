package repository

import (
	"context"
	"time"

	"peoplegrid/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostWithStats 帖子列表行：作者信息 + 点赞/评论计数 + 当前用户是否已点赞
type PostWithStats struct {
	PostID            uint
	Content           string
	Title             string
	PostType          string
	MediaURL          *string
	CreatedAt         time.Time
	UserID            uint
	Username          string
	ProfilePictureURL string
	LikeCount         int64
	CommentCount      int64
	IsLikedByUser     bool
}

// PostRepository 帖子、评论、点赞仓储
type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *PostRepository) GetByID(ctx context.Context, id uint) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Exists 帖子是否存在
func (r *PostRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListWithStats 全部帖子，按时间倒序
func (r *PostRepository) ListWithStats(ctx context.Context, viewerID uint) ([]PostWithStats, error) {
	var rows []PostWithStats
	err := r.db.WithContext(ctx).
		Table("posts p").
		Select(`p.id AS post_id, p.content, p.title, p.post_type, p.media_url, p.created_at,
			u.id AS user_id, u.username, u.profile_picture_url,
			(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
			(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
			EXISTS(SELECT 1 FROM likes l2 WHERE l2.post_id = p.id AND l2.user_id = ?) AS is_liked_by_user`, viewerID).
		Joins("JOIN users u ON u.id = p.user_id").
		Order("p.created_at DESC, p.id DESC").
		Scan(&rows).Error
	return rows, err
}

// DeleteWithDependents 在同一事务中删除帖子及其评论、点赞
func (r *PostRepository) DeleteWithDependents(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Post{}, postID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ToggleLike 已点赞则取消，否则点赞；返回操作后的状态和点赞总数
// 先尝试删除再按结果插入，并发重复提交时插入冲突被忽略
func (r *PostRepository) ToggleLike(ctx context.Context, userID, postID uint) (liked bool, count int64, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&model.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := &model.Like{UserID: userID, PostID: postID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&model.Like{}).Where("post_id = ?", postID).Count(&count).Error
	})
	return liked, count, err
}

// CountLikes 帖子点赞数
func (r *PostRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// ListComments 帖子评论，按时间正序并带评论者
func (r *PostRepository) ListComments(ctx context.Context, postID uint) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *PostRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}
