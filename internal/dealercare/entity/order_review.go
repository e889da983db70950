package entity

import "time"

// OrderReview 客户对审批流程本身的评价，一单一条
type OrderReview struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceOrderID uint      `json:"service_order_id" gorm:"uniqueIndex;not null"`
	InfoUsefulness int       `json:"info_usefulness"`
	Usability      int       `json:"usability"`
	VideoContent   int       `json:"video_content"`
	VideoImage     int       `json:"video_image"`
	VideoSound     int       `json:"video_sound"`
	VideoDuration  int       `json:"video_duration"`
	Comment        string    `json:"comment" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (OrderReview) TableName() string {
	return "service_order_reviews"
}
