package repository

import (
	"context"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"gorm.io/gorm"
)

// VideoRepository 视频仓库
type VideoRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create 创建视频记录
func (r *VideoRepository) Create(ctx context.Context, video *entity.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

// FindByID 按ID查找
func (r *VideoRepository) FindByID(ctx context.Context, id uint) (*entity.Video, error) {
	var video entity.Video
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &video, nil
}

// FindByOrderID 查找工单的视频，一单一条取最新
func (r *VideoRepository) FindByOrderID(ctx context.Context, orderID uint) (*entity.Video, error) {
	var video entity.Video
	err := r.db.WithContext(ctx).
		Where("service_order_id = ?", orderID).
		Order("created_at DESC").
		First(&video).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &video, nil
}

// Delete 删除视频记录。文件和截图的级联清理在 VideoService 处理。
func (r *VideoRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entity.Video{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FrameRepository 缺陷截图仓库
type FrameRepository struct {
	db *gorm.DB
}

func NewFrameRepository(db *gorm.DB) *FrameRepository {
	return &FrameRepository{db: db}
}

// ListByOrder 工单的全部截图
func (r *FrameRepository) ListByOrder(ctx context.Context, orderID uint) ([]entity.Frame, error) {
	var frames []entity.Frame
	err := r.db.WithContext(ctx).
		Where("service_order_id = ?", orderID).
		Order("idx ASC").
		Find(&frames).Error
	return frames, err
}

// ReplaceForOrder 整体替换工单的截图记录（删旧插新，一个事务）
func (r *FrameRepository) ReplaceForOrder(ctx context.Context, orderID uint, frames []entity.Frame) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service_order_id = ?", orderID).Delete(&entity.Frame{}).Error; err != nil {
			return err
		}
		if len(frames) == 0 {
			return nil
		}
		return tx.Create(&frames).Error
	})
}

// DeleteForOrder 清空工单的截图记录
func (r *FrameRepository) DeleteForOrder(ctx context.Context, orderID uint) error {
	return r.db.WithContext(ctx).
		Where("service_order_id = ?", orderID).
		Delete(&entity.Frame{}).Error
}
