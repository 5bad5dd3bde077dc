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

// DefaultPostType 未指定类型时使用
const DefaultPostType = "text"

// NewPost 创建帖子的输入，Media 为空表示无附件
type NewPost struct {
	Content  string
	Title    string
	PostType string
	Media    io.Reader
}

// PostService 动态流
type PostService struct {
	posts    *repository.PostRepository
	users    *repository.UserRepository
	uploader media.Uploader
	folder   string
}

func NewPostService(posts *repository.PostRepository, users *repository.UserRepository, uploader media.Uploader, folder string) *PostService {
	return &PostService{posts: posts, users: users, uploader: uploader, folder: folder}
}

// ListPosts 全部帖子，新的在前
func (s *PostService) ListPosts(ctx context.Context, viewerID uint) ([]repository.PostWithStats, error) {
	rows, err := s.posts.ListWithStats(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return rows, nil
}

// CreatePost 先上传附件（失败则不创建），再写入帖子
func (s *PostService) CreatePost(ctx context.Context, userID uint, in NewPost) (*model.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	postType := strings.TrimSpace(in.PostType)
	if postType == "" {
		postType = DefaultPostType
	}

	post := &model.Post{
		UserID:   userID,
		Content:  content,
		Title:    strings.TrimSpace(in.Title),
		PostType: postType,
	}

	if in.Media != nil {
		url, err := s.uploader.Upload(ctx, s.folder, in.Media)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		post.MediaURL = &url
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if author, err := s.users.GetByID(ctx, userID); err == nil {
		post.User = *author
	}
	return post, nil
}

// ToggleLike 切换点赞状态，返回操作后的状态和点赞数
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (bool, int64, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return false, 0, err
	}
	liked, count, err := s.posts.ToggleLike(ctx, userID, postID)
	if err != nil {
		return false, 0, fmt.Errorf("toggle like: %w", err)
	}
	return liked, count, nil
}

// ListComments 帖子评论，旧的在前
func (s *PostService) ListComments(ctx context.Context, postID uint) ([]model.Comment, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.posts.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// AddComment 添加评论
func (s *PostService) AddComment(ctx context.Context, userID, postID uint, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment_text is required", ErrInvalidInput)
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	comment := &model.Comment{PostID: postID, UserID: userID, CommentText: text}
	if err := s.posts.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	if author, err := s.users.GetByID(ctx, userID); err == nil {
		comment.User = *author
	}
	return comment, nil
}

// DeletePost 仅作者可删除
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("load post: %w", err)
	}
	if post.UserID != userID {
		return ErrForbidden
	}
	if err := s.posts.DeleteWithDependents(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (s *PostService) requirePost(ctx context.Context, postID uint) error {
	ok, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if !ok {
		return ErrPostNotFound
	}
	return nil
}
