package handler

import (
	"peoplegrid/internal/service"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
)

// ProfilePhotoField 头像上传的表单字段
const ProfilePhotoField = "profilePhoto"

type ProfileHandler struct {
	service *service.ProfileService
}

func NewProfileHandler(s *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: s}
}

// UpdateProfileRequest 资料修改请求
type UpdateProfileRequest struct {
	Username           string `json:"username"`
	Bio                string `json:"bio"`
	RelationshipStatus string `json:"relationship_status"`
	Age                *int   `json:"age"`
	Pronouns           string `json:"pronouns"`
}

// Get 获取自己的资料
func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.service.GetProfile(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to load profile")
		return
	}
	response.Success(c, toUserView(user))
}

// Update 修改资料
func (h *ProfileHandler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), jwt.GetUserID(c), service.ProfileUpdate{
		Username:           req.Username,
		Bio:                req.Bio,
		RelationshipStatus: req.RelationshipStatus,
		Age:                req.Age,
		Pronouns:           req.Pronouns,
	})
	if err != nil {
		respondError(c, err, "failed to update profile")
		return
	}
	response.SuccessWithMessage(c, "profile updated", toUserView(user))
}

// UploadPhoto 上传头像（multipart 字段 profilePhoto）
func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	fh, err := c.FormFile(ProfilePhotoField)
	if err != nil {
		respondError(c, service.ErrNoFile, "")
		return
	}
	file, err := fh.Open()
	if err != nil {
		respondError(c, err, "failed to read uploaded file")
		return
	}
	defer file.Close()

	url, err := h.service.UploadPhoto(c.Request.Context(), jwt.GetUserID(c), file)
	if err != nil {
		respondError(c, err, "failed to upload profile photo")
		return
	}
	response.SuccessWithMessage(c, "profile photo updated", gin.H{"profile_picture_url": url})
}
