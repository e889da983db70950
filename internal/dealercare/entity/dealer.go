package entity

import "time"

// Dealer 经销商
type Dealer struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ExternalID string    `json:"external_id" gorm:"size:255;uniqueIndex"`
	Name       string    `json:"name" gorm:"size:255;not null"`
	LogoKey    string    `json:"logo_key" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Users []User `json:"users,omitempty" gorm:"many2many:dealer_user;"`
}

func (Dealer) TableName() string {
	return "dealers"
}
