package service

import (
	"time"

	"github.com/bitfantasy/dealercare/internal/config"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/shared/ffmpeg"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Auth      *AuthService
	User      *UserService
	Dealer    *DealerService
	Order     *OrderService
	Defect    *DefectService
	Decision  *DecisionService
	Review    *ReviewService
	Video     *VideoService
	Frame     *FrameService
	Dashboard *DashboardService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO init failed, frame storage disabled", zap.Error(err))
			minioClient = nil
		}
	}

	ffmpegClient := ffmpeg.New(cfg.FFmpeg.Bin)

	frameSvc := NewFrameService(repos.Order, repos.Video, repos.Frame, ffmpegClient, minioClient, cfg.MinIO.Bucket, cfg.Storage, rdb, logger)
	videoSvc := NewVideoService(repos.Order, repos.Video, frameSvc, ffmpegClient, cfg.Storage, logger)

	return &Services{
		Auth:      NewAuthService(repos.User, rdb, cfg),
		User:      NewUserService(repos.User, repos.Dealer),
		Dealer:    NewDealerService(repos.Dealer, minioClient, cfg.MinIO.Bucket),
		Order:     NewOrderService(repos.Order),
		Defect:    NewDefectService(repos.Order, repos.Video, frameSvc, cfg.Storage, logger),
		Decision:  NewDecisionService(repos.Order, logger),
		Review:    NewReviewService(repos.Review, frameSvc),
		Video:     videoSvc,
		Frame:     frameSvc,
		Dashboard: NewDashboardService(repos.Order, rdb, logger),
	}
}

// defaultNow / defaultNewID 时钟和ID生成默认实现，测试里可替换
func defaultNow() time.Time {
	return time.Now()
}

func defaultNewID() string {
	return uuid.NewString()
}
