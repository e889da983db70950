package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bitfantasy/dealercare/internal/config"
	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/shared/ffmpeg"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FrameQueueKey 抽帧任务的 redis 队列
const FrameQueueKey = "dealercare:frame_jobs"

// FrameService 缺陷截图：从视频按缺陷时间戳抽帧，存 MinIO，
// 按 {taskId, index} 打标，每次缺陷批次整体替换。
type FrameService struct {
	orders  *repository.ServiceOrderRepository
	videos  *repository.VideoRepository
	frames  *repository.FrameRepository
	ffmpeg  *ffmpeg.Client
	minio   *minio.Client
	bucket  string
	storage config.StorageConfig
	rdb     *redis.Client
	logger  *zap.Logger
}

func NewFrameService(
	orders *repository.ServiceOrderRepository,
	videos *repository.VideoRepository,
	frames *repository.FrameRepository,
	ffmpegClient *ffmpeg.Client,
	minioClient *minio.Client,
	bucket string,
	storage config.StorageConfig,
	rdb *redis.Client,
	logger *zap.Logger,
) *FrameService {
	return &FrameService{
		orders:  orders,
		videos:  videos,
		frames:  frames,
		ffmpeg:  ffmpegClient,
		minio:   minioClient,
		bucket:  bucket,
		storage: storage,
		rdb:     rdb,
		logger:  logger,
	}
}

// Enqueue 把工单的抽帧任务放进队列。没配 redis 时退化为同步抽取。
func (s *FrameService) Enqueue(ctx context.Context, orderID uint) {
	if s.rdb == nil {
		if err := s.ExtractForOrder(ctx, orderID); err != nil {
			s.logger.Error("synchronous frame extraction failed",
				zap.Uint("order_id", orderID), zap.Error(err))
		}
		return
	}
	if err := s.rdb.LPush(ctx, FrameQueueKey, strconv.FormatUint(uint64(orderID), 10)).Err(); err != nil {
		s.logger.Error("enqueue frame job failed",
			zap.Uint("order_id", orderID), zap.Error(err))
	}
}

// ExtractForOrder 为工单抽取全部带时间戳缺陷的截图。
// 全部新截图就绪后才删旧换新，中途失败保留旧截图。
func (s *FrameService) ExtractForOrder(ctx context.Context, orderID uint) error {
	if s.minio == nil {
		return fmt.Errorf("frame storage is not configured")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	video, err := s.videos.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == repository.ErrNotFound {
			return ErrVideoMissing
		}
		return err
	}
	videoPath := filepath.Join(s.storage.VideoDir, video.Filename)
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("%w: %s", ErrVideoMissing, video.Filename)
	}

	tempDir, err := os.MkdirTemp(s.storage.TempDir, "frames_")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var fresh []entity.Frame
	for index, defect := range order.Defects {
		if defect.Time <= 0 {
			continue
		}

		framePath := filepath.Join(tempDir, fmt.Sprintf("frame_%d.jpg", index))
		if err := s.ffmpeg.ExtractFrame(ctx, videoPath, defect.Time, framePath); err != nil {
			return fmt.Errorf("extract frame for task %s: %w", defect.ID, err)
		}

		objectKey := fmt.Sprintf("frames/%d/%s_%d.jpg", order.ID, defect.ID.String(), index)
		if _, err := s.minio.FPutObject(ctx, s.bucket, objectKey, framePath, minio.PutObjectOptions{
			ContentType: "image/jpeg",
		}); err != nil {
			return fmt.Errorf("store frame %s: %w", objectKey, err)
		}

		fresh = append(fresh, entity.Frame{
			ServiceOrderID: order.ID,
			TaskID:         defect.ID.String(),
			Index:          index,
			ObjectKey:      objectKey,
			TimeSec:        defect.Time,
		})
	}

	// 新截图都齐了，旧的可以走了
	old, err := s.frames.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.frames.ReplaceForOrder(ctx, orderID, fresh); err != nil {
		return fmt.Errorf("replace frame records: %w", err)
	}
	s.removeObjects(ctx, old, fresh)

	s.logger.Info("frames extracted",
		zap.Uint("order_id", orderID),
		zap.Int("frames", len(fresh)),
	)
	return nil
}

// ClearForOrder 删掉工单的全部截图（视频删除时的级联清理）
func (s *FrameService) ClearForOrder(ctx context.Context, orderID uint) error {
	old, err := s.frames.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.frames.DeleteForOrder(ctx, orderID); err != nil {
		return err
	}
	s.removeObjects(ctx, old, nil)
	return nil
}

// MapByTask 工单截图的 taskId → 访问URL 索引，公开页面渲染用
func (s *FrameService) MapByTask(ctx context.Context, orderID uint) (map[string]string, error) {
	frames, err := s.frames.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]string, len(frames))
	for _, f := range frames {
		if _, ok := urls[f.TaskID]; ok {
			continue // 同一任务取第一张
		}
		u, err := s.URLFor(ctx, &f)
		if err != nil {
			s.logger.Warn("presign frame url failed",
				zap.String("object_key", f.ObjectKey), zap.Error(err))
			continue
		}
		urls[f.TaskID] = u
	}
	return urls, nil
}

// URLFor 截图的限时访问URL
func (s *FrameService) URLFor(ctx context.Context, frame *entity.Frame) (string, error) {
	if s.minio == nil {
		return "", fmt.Errorf("frame storage is not configured")
	}
	u, err := s.minio.PresignedGetObject(ctx, s.bucket, frame.ObjectKey, time.Hour, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// removeObjects 删除不再被 keep 引用的旧对象
func (s *FrameService) removeObjects(ctx context.Context, old, keep []entity.Frame) {
	if s.minio == nil {
		return
	}
	kept := make(map[string]struct{}, len(keep))
	for _, f := range keep {
		kept[f.ObjectKey] = struct{}{}
	}
	for _, f := range old {
		if _, ok := kept[f.ObjectKey]; ok {
			continue
		}
		if err := s.minio.RemoveObject(ctx, s.bucket, f.ObjectKey, minio.RemoveObjectOptions{}); err != nil {
			s.logger.Warn("remove stale frame object failed",
				zap.String("object_key", f.ObjectKey), zap.Error(err))
		}
	}
}
