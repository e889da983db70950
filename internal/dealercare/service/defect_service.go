package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitfantasy/dealercare/internal/config"
	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrVideoMissing 工单没有可用的视频文件，缺陷批次整体拒绝
var ErrVideoMissing = errors.New("video file for service order not found")

// DefectService 缺陷批次接入：任务目录合并、技师认领、截图抽取调度
type DefectService struct {
	orders  *repository.ServiceOrderRepository
	videos  *repository.VideoRepository
	frames  *FrameService
	storage config.StorageConfig
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

func NewDefectService(orders *repository.ServiceOrderRepository, videos *repository.VideoRepository, frames *FrameService, storage config.StorageConfig, logger *zap.Logger) *DefectService {
	return &DefectService{
		orders:  orders,
		videos:  videos,
		frames:  frames,
		storage: storage,
		logger:  logger,
		now:     defaultNow,
		newID:   defaultNewID,
	}
}

// SubmitDefects 接入一批缺陷。tasks 增量合并、defects 整体替换、
// 首个提交者认领工单、quotesCreated 幂等入审计日志，一个行锁事务提交。
// 工单必须已有视频文件，否则整个请求失败，什么都不落。
func (s *DefectService) SubmitDefects(ctx context.Context, serviceID uint, defects entity.DefectList, actorUserID *uint) (*entity.ServiceOrder, error) {
	if len(defects) == 0 {
		return nil, fmt.Errorf("defects must not be empty")
	}

	// 截图抽取依赖视频，先验证再动数据（避免清了旧图才发现没视频）
	video, err := s.videos.FindByOrderID(ctx, serviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrVideoMissing
		}
		return nil, err
	}
	videoPath := filepath.Join(s.storage.VideoDir, video.Filename)
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVideoMissing, video.Filename)
	}

	var order *entity.ServiceOrder
	err = s.orders.Transaction(ctx, func(tx *gorm.DB) error {
		order, err = s.orders.LockByID(tx, serviceID)
		if err != nil {
			return err
		}

		order.MergeDefectTasks(defects)

		// 首个提交缺陷的技师认领工单，之后不再改
		if order.MechanicID == nil && actorUserID != nil {
			order.MechanicID = actorUserID
		}

		order.RecordStatusOnce(s.newID(), entity.StatusQuotesCreated, s.now())

		return s.orders.SaveTx(tx, order)
	})
	if err != nil {
		return nil, err
	}

	// 事务提交后再调度抽帧，旧截图等新截图齐了才换掉
	if hasTimedDefects(defects) {
		s.frames.Enqueue(ctx, order.ID)
	}

	s.logger.Info("defect batch merged",
		zap.Uint("order_id", order.ID),
		zap.Int("defects", len(defects)),
		zap.Int("tasks", len(order.Tasks)),
	)

	return order, nil
}

func hasTimedDefects(defects entity.DefectList) bool {
	for _, d := range defects {
		if d.Time > 0 {
			return true
		}
	}
	return false
}
