package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Order  *ServiceOrderRepository
	Video  *VideoRepository
	Frame  *FrameRepository
	User   *UserRepository
	Dealer *DealerRepository
	Review *OrderReviewRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:  NewServiceOrderRepository(db),
		Video:  NewVideoRepository(db),
		Frame:  NewFrameRepository(db),
		User:   NewUserRepository(db),
		Dealer: NewDealerRepository(db),
		Review: NewOrderReviewRepository(db),
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
