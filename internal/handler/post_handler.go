package handler

import (
	"strings"

	"peoplegrid/internal/service"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
)

// MediaFileField 帖子附件的表单字段
const MediaFileField = "mediaFile"

type PostHandler struct {
	service *service.PostService
}

func NewPostHandler(s *service.PostService) *PostHandler {
	return &PostHandler{service: s}
}

// CreatePostRequest 发帖请求，JSON 或表单
type CreatePostRequest struct {
	Content  string `json:"content" form:"content"`
	Title    string `json:"title" form:"title"`
	PostType string `json:"post_type" form:"post_type"`
}

// CommentRequest 评论请求
type CommentRequest struct {
	CommentText string `json:"comment_text" binding:"required"`
}

// LikeResponse 点赞切换结果
type LikeResponse struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// List 动态流
func (h *PostHandler) List(c *gin.Context) {
	rows, err := h.service.ListPosts(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to load posts")
		return
	}
	response.Success(c, toPostViews(rows))
}

// Create 发帖，multipart 时可附带 mediaFile
func (h *PostHandler) Create(c *gin.Context) {
	var req CreatePostRequest
	in := service.NewPost{}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if fh, err := c.FormFile(MediaFileField); err == nil {
			file, err := fh.Open()
			if err != nil {
				respondError(c, err, "failed to read uploaded file")
				return
			}
			defer file.Close()
			in.Media = file
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	in.Content = req.Content
	in.Title = req.Title
	in.PostType = req.PostType

	post, err := h.service.CreatePost(c.Request.Context(), jwt.GetUserID(c), in)
	if err != nil {
		respondError(c, err, "failed to create post")
		return
	}
	response.Created(c, "post created", toNewPostView(post))
}

// ToggleLike 点赞/取消点赞
func (h *PostHandler) ToggleLike(c *gin.Context) {
	postID, ok := idParam(c, "postId")
	if !ok {
		return
	}
	liked, count, err := h.service.ToggleLike(c.Request.Context(), jwt.GetUserID(c), postID)
	if err != nil {
		respondError(c, err, "failed to toggle like")
		return
	}
	response.Success(c, LikeResponse{Liked: liked, LikeCount: count})
}

// Comments 帖子评论
func (h *PostHandler) Comments(c *gin.Context) {
	postID, ok := idParam(c, "postId")
	if !ok {
		return
	}
	comments, err := h.service.ListComments(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err, "failed to load comments")
		return
	}
	out := make([]CommentView, 0, len(comments))
	for i := range comments {
		out = append(out, toCommentView(&comments[i]))
	}
	response.Success(c, out)
}

// AddComment 发表评论
func (h *PostHandler) AddComment(c *gin.Context) {
	postID, ok := idParam(c, "postId")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), jwt.GetUserID(c), postID, req.CommentText)
	if err != nil {
		respondError(c, err, "failed to add comment")
		return
	}
	response.Created(c, "comment added", toCommentView(comment))
}

// Delete 删除自己的帖子
func (h *PostHandler) Delete(c *gin.Context) {
	postID, ok := idParam(c, "postId")
	if !ok {
		return
	}
	if err := h.service.DeletePost(c.Request.Context(), jwt.GetUserID(c), postID); err != nil {
		respondError(c, err, "failed to delete post")
		return
	}
	response.SuccessWithMessage(c, "post deleted", nil)
}
