package repository

import (
	"context"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderReviewRepository 工单评价仓库
type OrderReviewRepository struct {
	db *gorm.DB
}

func NewOrderReviewRepository(db *gorm.DB) *OrderReviewRepository {
	return &OrderReviewRepository{db: db}
}

// Upsert 一单一条评价，重复提交覆盖
func (r *OrderReviewRepository) Upsert(ctx context.Context, review *entity.OrderReview) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "service_order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"info_usefulness", "usability", "video_content",
				"video_image", "video_sound", "video_duration",
				"comment", "updated_at",
			}),
		}).
		Create(review).Error
}

// FindByOrderID 查找工单的评价
func (r *OrderReviewRepository) FindByOrderID(ctx context.Context, orderID uint) (*entity.OrderReview, error) {
	var review entity.OrderReview
	err := r.db.WithContext(ctx).Where("service_order_id = ?", orderID).First(&review).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &review, nil
}
