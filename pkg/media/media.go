package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"peoplegrid/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrNotConfigured 未配置媒体托管
var ErrNotConfigured = errors.New("media host not configured")

// Uploader 将二进制内容上传到外部媒体托管并返回持久URL
type Uploader interface {
	Upload(ctx context.Context, folder string, r io.Reader) (string, error)
}

// CloudinaryUploader Cloudinary 实现
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewUploader 按配置创建上传器，缺少凭证时返回 Disabled
func NewUploader(cfg config.CloudinaryConfig) (Uploader, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return Disabled{}, nil
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("初始化cloudinary失败: %w", err)
	}
	return &CloudinaryUploader{cld: cld}, nil
}

// Upload 上传文件，resource_type 由 Cloudinary 自动识别
func (u *CloudinaryUploader) Upload(ctx context.Context, folder string, r io.Reader) (string, error) {
	resp, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload rejected: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("upload returned no url")
	}
	return resp.SecureURL, nil
}

// Disabled 未配置时使用，所有上传均失败
type Disabled struct{}

// Upload 始终返回 ErrNotConfigured
func (Disabled) Upload(context.Context, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}
