package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken 邮箱已被别的用户占用
	ErrEmailTaken = errors.New("email already in use")
	// ErrSelfDelete 不允许删除自己的账号
	ErrSelfDelete = errors.New("cannot delete own account")
)

// UserService 后台用户管理
type UserService struct {
	users   *repository.UserRepository
	dealers *repository.DealerRepository
}

func NewUserService(users *repository.UserRepository, dealers *repository.DealerRepository) *UserService {
	return &UserService{users: users, dealers: dealers}
}

// UserInput 创建/编辑用户的请求体
type UserInput struct {
	Name      string `json:"name" binding:"required,max=255"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"omitempty,min=8"`
	Role      string `json:"role" binding:"required,oneof=admin manager mechanic"`
	DealerIDs []uint `json:"dealer_ids"`
}

// Create 新建用户，密码必填
func (s *UserService) Create(ctx context.Context, input UserInput) (*entity.User, error) {
	if input.Password == "" {
		return nil, fmt.Errorf("password is required")
	}
	taken, err := s.users.ExistsByEmail(ctx, input.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.syncDealers(ctx, user, input.DealerIDs); err != nil {
		return nil, err
	}
	return user, nil
}

// Update 编辑用户，密码留空则不改
func (s *UserService) Update(ctx context.Context, id uint, input UserInput) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByEmail(ctx, input.Email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user.Name = input.Name
	user.Email = input.Email
	user.Role = input.Role
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.syncDealers(ctx, user, input.DealerIDs); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) syncDealers(ctx context.Context, user *entity.User, dealerIDs []uint) error {
	dealers, err := s.dealers.FindByIDs(ctx, dealerIDs)
	if err != nil {
		return err
	}
	if err := s.users.SyncDealers(ctx, user, dealers); err != nil {
		return fmt.Errorf("sync dealers: %w", err)
	}
	user.Dealers = dealers
	return nil
}

// Get 用户详情
func (s *UserService) Get(ctx context.Context, id uint) (*entity.User, error) {
	return s.users.FindByID(ctx, id)
}

// List 用户列表，支持按名字/邮箱搜索
func (s *UserService) List(ctx context.Context, page, pageSize int, search string) ([]entity.User, int64, error) {
	return s.users.List(ctx, page, pageSize, search)
}

// Delete 删除用户，禁止删自己
func (s *UserService) Delete(ctx context.Context, id, actorID uint) error {
	if id == actorID {
		return ErrSelfDelete
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}
