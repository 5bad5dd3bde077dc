package handler

import (
	"time"

	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
)

// UserView 对外暴露的用户字段，不含密码哈希
type UserView struct {
	UserID             uint   `json:"user_id"`
	Username           string `json:"username"`
	Email              string `json:"email,omitempty"`
	ProfilePictureURL  string `json:"profile_picture_url"`
	Bio                string `json:"bio,omitempty"`
	RelationshipStatus string `json:"relationship_status,omitempty"`
	Age                *int   `json:"age,omitempty"`
	Pronouns           string `json:"pronouns,omitempty"`
}

// PublicUserView 好友/搜索列表中的用户
type PublicUserView struct {
	UserID            uint   `json:"user_id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// PostView 动态流中的帖子
type PostView struct {
	PostID            uint      `json:"post_id"`
	Content           string    `json:"content"`
	Title             string    `json:"title"`
	PostType          string    `json:"post_type"`
	MediaURL          *string   `json:"media_url"`
	CreatedAt         time.Time `json:"created_at"`
	UserID            uint      `json:"user_id"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	LikeCount         int64     `json:"like_count"`
	CommentCount      int64     `json:"comment_count"`
	IsLikedByUser     bool      `json:"is_liked_by_user"`
}

// CommentView 评论及评论者
type CommentView struct {
	CommentID         uint      `json:"comment_id"`
	PostID            uint      `json:"post_id"`
	CommentText       string    `json:"comment_text"`
	CreatedAt         time.Time `json:"created_at"`
	UserID            uint      `json:"user_id"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profile_picture_url"`
}

// MessageView 私信
type MessageView struct {
	MessageID   uint      `json:"message_id"`
	SenderID    uint      `json:"sender_id"`
	ReceiverID  uint      `json:"receiver_id"`
	MessageText string    `json:"message_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// FriendshipView 好友边
type FriendshipView struct {
	UserOneID    uint   `json:"user_one_id"`
	UserTwoID    uint   `json:"user_two_id"`
	Status       string `json:"status"`
	ActionUserID uint   `json:"action_user_id"`
}

func toUserView(u *model.User) UserView {
	return UserView{
		UserID:             u.ID,
		Username:           u.Username,
		Email:              u.Email,
		ProfilePictureURL:  u.ProfilePictureURL,
		Bio:                u.Bio,
		RelationshipStatus: u.RelationshipStatus,
		Age:                u.Age,
		Pronouns:           u.Pronouns,
	}
}

func toPublicUsers(users []model.User) []PublicUserView {
	out := make([]PublicUserView, 0, len(users))
	for _, u := range users {
		out = append(out, PublicUserView{UserID: u.ID, Username: u.Username, ProfilePictureURL: u.ProfilePictureURL})
	}
	return out
}

func toPostViews(rows []repository.PostWithStats) []PostView {
	out := make([]PostView, 0, len(rows))
	for _, r := range rows {
		out = append(out, PostView{
			PostID:            r.PostID,
			Content:           r.Content,
			Title:             r.Title,
			PostType:          r.PostType,
			MediaURL:          r.MediaURL,
			CreatedAt:         r.CreatedAt,
			UserID:            r.UserID,
			Username:          r.Username,
			ProfilePictureURL: r.ProfilePictureURL,
			LikeCount:         r.LikeCount,
			CommentCount:      r.CommentCount,
			IsLikedByUser:     r.IsLikedByUser,
		})
	}
	return out
}

// toNewPostView 新建的帖子没有互动数据
func toNewPostView(p *model.Post) PostView {
	return PostView{
		PostID:            p.ID,
		Content:           p.Content,
		Title:             p.Title,
		PostType:          p.PostType,
		MediaURL:          p.MediaURL,
		CreatedAt:         p.CreatedAt,
		UserID:            p.UserID,
		Username:          p.User.Username,
		ProfilePictureURL: p.User.ProfilePictureURL,
	}
}

func toCommentView(c *model.Comment) CommentView {
	return CommentView{
		CommentID:         c.ID,
		PostID:            c.PostID,
		CommentText:       c.CommentText,
		CreatedAt:         c.CreatedAt,
		UserID:            c.UserID,
		Username:          c.User.Username,
		ProfilePictureURL: c.User.ProfilePictureURL,
	}
}

func toMessageViews(messages []model.Message) []MessageView {
	out := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageView{
			MessageID:   m.ID,
			SenderID:    m.SenderID,
			ReceiverID:  m.ReceiverID,
			MessageText: m.MessageText,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out
}
