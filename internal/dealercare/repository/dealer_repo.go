package repository

import (
	"context"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"gorm.io/gorm"
)

// DealerRepository 经销商仓库
type DealerRepository struct {
	db *gorm.DB
}

func NewDealerRepository(db *gorm.DB) *DealerRepository {
	return &DealerRepository{db: db}
}

// Create 创建经销商
func (r *DealerRepository) Create(ctx context.Context, dealer *entity.Dealer) error {
	return r.db.WithContext(ctx).Create(dealer).Error
}

// Update 更新经销商
func (r *DealerRepository) Update(ctx context.Context, dealer *entity.Dealer) error {
	return r.db.WithContext(ctx).Save(dealer).Error
}

// FindByID 按ID查找
func (r *DealerRepository) FindByID(ctx context.Context, id uint) (*entity.Dealer, error) {
	var dealer entity.Dealer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dealer).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &dealer, nil
}

// FindByIDs 批量查找，用户-经销商关联同步用
func (r *DealerRepository) FindByIDs(ctx context.Context, ids []uint) ([]entity.Dealer, error) {
	var dealers []entity.Dealer
	if len(ids) == 0 {
		return dealers, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&dealers).Error
	return dealers, err
}

// ExistsByExternalID 外部编号是否被占用
func (r *DealerRepository) ExistsByExternalID(ctx context.Context, externalID string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Dealer{}).Where("external_id = ?", externalID)
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// List 经销商列表，按名称/外部编号/ID搜索
func (r *DealerRepository) List(ctx context.Context, page, pageSize int, search string) ([]entity.Dealer, int64, error) {
	var dealers []entity.Dealer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Dealer{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR external_id ILIKE ? OR CAST(id AS TEXT) = ?", like, like, search)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&dealers).Error

	return dealers, total, err
}

// ListAll 下拉选择用，按名称排序取全量
func (r *DealerRepository) ListAll(ctx context.Context) ([]entity.Dealer, error) {
	var dealers []entity.Dealer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&dealers).Error
	return dealers, err
}

// Delete 删除经销商
func (r *DealerRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entity.Dealer{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
