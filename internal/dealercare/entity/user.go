package entity

import "time"

// 用户角色常量
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleMechanic = "mechanic"
)

// User 后台用户（管理员/经理/技师）
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	Role         string    `json:"role" gorm:"size:20;not null;default:'manager'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Dealers []Dealer `json:"dealers,omitempty" gorm:"many2many:dealer_user;"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAccessAdminPanel 管理员和经理可进后台
func (u *User) CanAccessAdminPanel() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}
