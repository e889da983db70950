package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ServiceOrderRepository 服务工单仓库
type ServiceOrderRepository struct {
	db *gorm.DB
}

func NewServiceOrderRepository(db *gorm.DB) *ServiceOrderRepository {
	return &ServiceOrderRepository{db: db}
}

// DB 暴露底层连接，供需要跨仓库事务的服务使用
func (r *ServiceOrderRepository) DB() *gorm.DB {
	return r.db
}

// Transaction 在一个数据库事务内执行 fn
func (r *ServiceOrderRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create 创建工单
func (r *ServiceOrderRepository) Create(ctx context.Context, order *entity.ServiceOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Save 保存整个工单
func (r *ServiceOrderRepository) Save(ctx context.Context, order *entity.ServiceOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// SaveTx 在事务内保存工单
func (r *ServiceOrderRepository) SaveTx(tx *gorm.DB, order *entity.ServiceOrder) error {
	return tx.Save(order).Error
}

// FindByID 按内部ID查找
func (r *ServiceOrderRepository) FindByID(ctx context.Context, id uint) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &order, nil
}

// FindByOrderID 按外部订单号查找
func (r *ServiceOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &order, nil
}

// FindByPublicURL 按公开链接查找，带技师关联
func (r *ServiceOrderRepository) FindByPublicURL(ctx context.Context, publicURL string) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	err := r.db.WithContext(ctx).
		Preload("Mechanic").
		Where("public_url = ?", publicURL).
		First(&order).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &order, nil
}

// LockByPublicURL 事务内按公开链接加行锁读取（SELECT ... FOR UPDATE）
func (r *ServiceOrderRepository) LockByPublicURL(tx *gorm.DB, publicURL string) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("public_url = ?", publicURL).
		First(&order).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &order, nil
}

// LockByID 事务内按内部ID加行锁读取
func (r *ServiceOrderRepository) LockByID(tx *gorm.DB, id uint) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &order, nil
}

// ExistsByPublicURL 公开链接是否已被占用
func (r *ServiceOrderRepository) ExistsByPublicURL(ctx context.Context, publicURL string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ServiceOrder{}).
		Where("public_url = ?", publicURL).
		Count(&count).Error
	return count > 0, err
}

// List 后台工单列表，按外部订单号/客户姓名模糊搜索
func (r *ServiceOrderRepository) List(ctx context.Context, page, pageSize int, search string) ([]entity.ServiceOrder, int64, error) {
	var orders []entity.ServiceOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ServiceOrder{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"order_id ILIKE ? OR client->>'firstName' ILIKE ? OR client->>'lastName' ILIKE ?",
			like, like, like,
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}

// Delete 删除工单（仅后台手工操作）
func (r *ServiceOrderRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entity.ServiceOrder{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count 工单总数
func (r *ServiceOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ServiceOrder{}).Count(&count).Error
	return count, err
}

// CountCreatedSince 某时刻之后创建的工单数
func (r *ServiceOrderRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ServiceOrder{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// LatestCreatedAt 最近一单的创建时间
func (r *ServiceOrderRepository) LatestCreatedAt(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	err := r.db.WithContext(ctx).
		Model(&entity.ServiceOrder{}).
		Select("MAX(created_at)").
		Scan(&latest).Error
	return latest, err
}

// ListStatusHistories 全部工单的审计日志列，仪表盘统计用
func (r *ServiceOrderRepository) ListStatusHistories(ctx context.Context) ([]entity.StatusRecordList, error) {
	var rows []entity.ServiceOrder
	err := r.db.WithContext(ctx).
		Model(&entity.ServiceOrder{}).
		Select("process_status_records").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	histories := make([]entity.StatusRecordList, 0, len(rows))
	for _, row := range rows {
		histories = append(histories, row.ProcessStatusRecords)
	}
	return histories, nil
}

// ListAll 导出用，按创建时间倒序取全量
func (r *ServiceOrderRepository) ListAll(ctx context.Context) ([]entity.ServiceOrder, error) {
	var orders []entity.ServiceOrder
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
