package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Video 工单关联的检测视频，实际使用中一单一视频
type Video struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ServiceOrderID uint           `json:"service_order_id" gorm:"index;not null"`
	Filename       string         `json:"filename" gorm:"size:255;not null"`
	OriginalName   string         `json:"original_name" gorm:"size:255"`
	Path           string         `json:"path" gorm:"size:500;not null"`
	Size           int64          `json:"size"`
	MimeType       string         `json:"mime_type" gorm:"size:100"`
	TotalDuration  float64        `json:"total_duration"`
	Timecodes      datatypes.JSON `json:"timecodes,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}

// Frame 从视频里抽取的缺陷截图，按 {taskId, index} 打标，
// 每次缺陷批次整体替换。对象本体存 MinIO。
type Frame struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceOrderID uint      `json:"service_order_id" gorm:"index;not null"`
	TaskID         string    `json:"task_id" gorm:"size:100;index;not null"`
	Index          int       `json:"index" gorm:"column:idx"`
	ObjectKey      string    `json:"object_key" gorm:"size:500;not null"`
	TimeSec        float64   `json:"time_sec"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Frame) TableName() string {
	return "frames"
}
