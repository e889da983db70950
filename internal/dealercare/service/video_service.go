package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/bitfantasy/dealercare/internal/config"
	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/shared/ffmpeg"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// VideoService 巡检视频：分片合并落盘、单文件上传、播放、删除。
// 一个工单同一时刻只有一个有效视频，新视频顶掉旧的（含截图）。
type VideoService struct {
	orders  *repository.ServiceOrderRepository
	videos  *repository.VideoRepository
	frames  *FrameService
	ffmpeg  *ffmpeg.Client
	storage config.StorageConfig
	logger  *zap.Logger
	now     func() time.Time
}

func NewVideoService(
	orders *repository.ServiceOrderRepository,
	videos *repository.VideoRepository,
	frames *FrameService,
	ffmpegClient *ffmpeg.Client,
	storage config.StorageConfig,
	logger *zap.Logger,
) *VideoService {
	return &VideoService{
		orders:  orders,
		videos:  videos,
		frames:  frames,
		ffmpeg:  ffmpegClient,
		storage: storage,
		logger:  logger,
		now:     defaultNow,
	}
}

// ChunkUpload 一次分片上传请求：按序号命名的分片与元信息
type ChunkUpload struct {
	TotalDuration float64
	Timecodes     datatypes.JSON
	MimeType      string
	Chunks        []*multipart.FileHeader // 已按分片序号排好
}

// SaveChunks 合并分片为完整视频并登记。
// 调用方负责校验分片齐全，这里按切片顺序串接写入。
func (s *VideoService) SaveChunks(ctx context.Context, orderID uint, upload ChunkUpload) (*entity.Video, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("video_%d_%d.mp4", order.ID, s.now().Unix())
	dstPath := filepath.Join(s.storage.VideoDir, filename)
	if err := os.MkdirAll(s.storage.VideoDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure video dir: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("create video file: %w", err)
	}

	srcs := make([]io.Reader, 0, len(upload.Chunks))
	closers := make([]io.Closer, 0, len(upload.Chunks))
	for _, chunk := range upload.Chunks {
		f, err := chunk.Open()
		if err != nil {
			dst.Close()
			os.Remove(dstPath)
			closeAll(closers)
			return nil, fmt.Errorf("open chunk: %w", err)
		}
		srcs = append(srcs, f)
		closers = append(closers, f)
	}

	size, err := assembleChunks(dst, srcs)
	closeAll(closers)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("assemble chunks: %w", err)
	}

	return s.register(ctx, order, filename, dstPath, size, upload.MimeType, upload.TotalDuration, upload.Timecodes)
}

// SaveFile 整文件上传，moov 前移后登记
func (s *VideoService) SaveFile(ctx context.Context, orderID uint, file *multipart.FileHeader, totalDuration float64, timecodes datatypes.JSON) (*entity.Video, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.storage.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure temp dir: %w", err)
	}
	if err := os.MkdirAll(s.storage.VideoDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure video dir: %w", err)
	}

	rawPath := filepath.Join(s.storage.TempDir, fmt.Sprintf("raw_%d_%d.mp4", order.ID, s.now().UnixNano()))
	if err := saveMultipart(file, rawPath); err != nil {
		return nil, err
	}
	defer os.Remove(rawPath)

	filename := fmt.Sprintf("video_%d_%d.mp4", order.ID, s.now().Unix())
	dstPath := filepath.Join(s.storage.VideoDir, filename)
	if err := s.ffmpeg.Faststart(ctx, rawPath, dstPath); err != nil {
		// 容器不支持 faststart 时原样收下
		s.logger.Warn("faststart remux failed, keeping original",
			zap.Uint("order_id", order.ID), zap.Error(err))
		if err := copyFile(rawPath, dstPath); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, order, filename, dstPath, info.Size(), file.Header.Get("Content-Type"), totalDuration, timecodes)
}

// register 登记新视频并顶掉旧视频（文件、记录、截图）
func (s *VideoService) register(ctx context.Context, order *entity.ServiceOrder, filename, path string, size int64, mimeType string, totalDuration float64, timecodes datatypes.JSON) (*entity.Video, error) {
	previous, err := s.videos.FindByOrderID(ctx, order.ID)
	if err != nil && err != repository.ErrNotFound {
		os.Remove(path)
		return nil, err
	}

	video := &entity.Video{
		ServiceOrderID: order.ID,
		Filename:       filename,
		Path:           path,
		Size:           size,
		MimeType:       mimeType,
		TotalDuration:  totalDuration,
		Timecodes:      timecodes,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		os.Remove(path)
		return nil, err
	}

	if previous != nil {
		if err := s.videos.Delete(ctx, previous.ID); err != nil {
			s.logger.Warn("delete replaced video record failed",
				zap.Uint("video_id", previous.ID), zap.Error(err))
		}
		s.removeFile(previous)
	}

	s.logger.Info("video stored",
		zap.Uint("order_id", order.ID),
		zap.String("filename", filename),
		zap.Int64("size", size),
	)
	return video, nil
}

// Get 工单当前视频
func (s *VideoService) Get(ctx context.Context, orderID uint) (*entity.Video, error) {
	return s.videos.FindByOrderID(ctx, orderID)
}

// PlayPath 播放用的本地文件路径
func (s *VideoService) PlayPath(ctx context.Context, videoID uint) (string, string, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return "", "", err
	}
	path := filepath.Join(s.storage.VideoDir, video.Filename)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrVideoMissing, video.Filename)
	}
	mimeType := video.MimeType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	return path, mimeType, nil
}

// DeleteByID 按视频ID删除
func (s *VideoService) DeleteByID(ctx context.Context, videoID uint) error {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return err
	}
	return s.remove(ctx, video)
}

// Delete 删工单当前视频
func (s *VideoService) Delete(ctx context.Context, orderID uint) error {
	video, err := s.videos.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.remove(ctx, video)
}

// remove 删视频，连带截图一起清掉
func (s *VideoService) remove(ctx context.Context, video *entity.Video) error {
	if err := s.videos.Delete(ctx, video.ID); err != nil {
		return err
	}
	s.removeFile(video)
	if err := s.frames.ClearForOrder(ctx, video.ServiceOrderID); err != nil {
		s.logger.Warn("clear frames after video delete failed",
			zap.Uint("order_id", video.ServiceOrderID), zap.Error(err))
	}
	return nil
}

func (s *VideoService) removeFile(video *entity.Video) {
	path := filepath.Join(s.storage.VideoDir, video.Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove video file failed",
			zap.String("path", path), zap.Error(err))
	}
}

// assembleChunks 按顺序把分片串接进目标，返回总字节数
func assembleChunks(dst io.Writer, srcs []io.Reader) (int64, error) {
	var total int64
	for i, src := range srcs {
		n, err := io.Copy(dst, src)
		total += n
		if err != nil {
			return total, fmt.Errorf("copy chunk %d: %w", i, err)
		}
	}
	return total, nil
}

func saveMultipart(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("write upload: %w", err)
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}
