package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

var (
	// ErrExternalIDTaken 外部经销商编号已被占用
	ErrExternalIDTaken = errors.New("external id already in use")
	// ErrBadLogo Logo不合规（类型或大小）
	ErrBadLogo = errors.New("logo must be jpeg/png/webp up to 5MB")
)

const maxLogoSize = 5 << 20

// DealerService 经销商管理，Logo存MinIO
type DealerService struct {
	dealers *repository.DealerRepository
	minio   *minio.Client
	bucket  string
}

func NewDealerService(dealers *repository.DealerRepository, minioClient *minio.Client, bucket string) *DealerService {
	return &DealerService{dealers: dealers, minio: minioClient, bucket: bucket}
}

// DealerInput 创建/编辑经销商的请求体
type DealerInput struct {
	Name       string `form:"name" binding:"required,max=255"`
	ExternalID string `form:"external_id" binding:"omitempty,max=100"`
}

// Create 新建经销商，可选带Logo
func (s *DealerService) Create(ctx context.Context, input DealerInput, logo *multipart.FileHeader) (*entity.Dealer, error) {
	if input.ExternalID != "" {
		taken, err := s.dealers.ExistsByExternalID(ctx, input.ExternalID, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrExternalIDTaken
		}
	}

	dealer := &entity.Dealer{
		Name:       input.Name,
		ExternalID: input.ExternalID,
	}
	if logo != nil {
		key, err := s.storeLogo(ctx, logo)
		if err != nil {
			return nil, err
		}
		dealer.LogoKey = key
	}
	if err := s.dealers.Create(ctx, dealer); err != nil {
		return nil, err
	}
	return dealer, nil
}

// Update 编辑经销商，传了新Logo就替换旧的
func (s *DealerService) Update(ctx context.Context, id uint, input DealerInput, logo *multipart.FileHeader) (*entity.Dealer, error) {
	dealer, err := s.dealers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ExternalID != "" {
		taken, err := s.dealers.ExistsByExternalID(ctx, input.ExternalID, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrExternalIDTaken
		}
	}

	dealer.Name = input.Name
	dealer.ExternalID = input.ExternalID

	if logo != nil {
		key, err := s.storeLogo(ctx, logo)
		if err != nil {
			return nil, err
		}
		if dealer.LogoKey != "" && s.minio != nil {
			s.minio.RemoveObject(ctx, s.bucket, dealer.LogoKey, minio.RemoveObjectOptions{})
		}
		dealer.LogoKey = key
	}

	if err := s.dealers.Update(ctx, dealer); err != nil {
		return nil, err
	}
	return dealer, nil
}

// storeLogo 校验并上传Logo
func (s *DealerService) storeLogo(ctx context.Context, logo *multipart.FileHeader) (string, error) {
	if s.minio == nil {
		return "", fmt.Errorf("logo storage is not configured")
	}
	if logo.Size > maxLogoSize {
		return "", ErrBadLogo
	}
	contentType := logo.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return "", ErrBadLogo
	}

	src, err := logo.Open()
	if err != nil {
		return "", fmt.Errorf("open logo: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(logo.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("logos/%s%s", uuid.NewString(), ext)
	if _, err := s.minio.PutObject(ctx, s.bucket, key, src, logo.Size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("store logo: %w", err)
	}
	return key, nil
}

// LogoURL Logo的限时访问URL，没有Logo返回空串
func (s *DealerService) LogoURL(ctx context.Context, dealer *entity.Dealer) string {
	if dealer.LogoKey == "" || s.minio == nil {
		return ""
	}
	u, err := s.minio.PresignedGetObject(ctx, s.bucket, dealer.LogoKey, time.Hour, nil)
	if err != nil {
		return ""
	}
	return u.String()
}

// Get 经销商详情
func (s *DealerService) Get(ctx context.Context, id uint) (*entity.Dealer, error) {
	return s.dealers.FindByID(ctx, id)
}

// List 经销商列表，支持按名字/编号搜索
func (s *DealerService) List(ctx context.Context, page, pageSize int, search string) ([]entity.Dealer, int64, error) {
	return s.dealers.List(ctx, page, pageSize, search)
}

// ListAll 全量列表，用户编辑页的下拉用
func (s *DealerService) ListAll(ctx context.Context) ([]entity.Dealer, error) {
	return s.dealers.ListAll(ctx)
}

// Delete 删除经销商，顺手清掉Logo对象
func (s *DealerService) Delete(ctx context.Context, id uint) error {
	dealer, err := s.dealers.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.dealers.Delete(ctx, id); err != nil {
		return err
	}
	if dealer.LogoKey != "" && s.minio != nil {
		s.minio.RemoveObject(ctx, s.bucket, dealer.LogoKey, minio.RemoveObjectOptions{})
	}
	return nil
}
