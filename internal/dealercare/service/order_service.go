package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"gorm.io/datatypes"
)

// ErrMissingOrderID 上报里没有 referenceObject.orderId
var ErrMissingOrderID = errors.New("referenceObject.orderId is required")

const (
	publicURLLength  = 19
	publicURLCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// 碰撞重试上限
	publicURLMaxAttempts = 100
)

// OrderService 工单接入与状态记录服务
type OrderService struct {
	orders    *repository.ServiceOrderRepository
	now       func() time.Time
	newID     func() string
	randToken func(int) string
}

func NewOrderService(orders *repository.ServiceOrderRepository) *OrderService {
	return &OrderService{
		orders:    orders,
		now:       defaultNow,
		newID:     defaultNewID,
		randToken: randomToken,
	}
}

// IngestPayload 外部系统的调查上报，按 referenceObject.orderId 做 upsert
type IngestPayload struct {
	ReferenceObject entity.ReferenceObject `json:"referenceObject" binding:"required"`

	SiteID           string `json:"siteId"`
	LocationCode     string `json:"locationCode"`
	ReviewCategory   string `json:"reviewCategory"`
	DealerCode       string `json:"dealerCode"`
	ReviewID         string `json:"reviewId"`
	ProcessStatus    string `json:"processStatus"`
	ReviewType       string `json:"reviewType"`
	SystemID         string `json:"systemId"`
	ReviewTemplateID string `json:"reviewTemplateId"`
	ReviewName       string `json:"reviewName"`
	TimeSpent        int    `json:"timeSpent"`

	Closed        bool `json:"closed"`
	Completed     bool `json:"completed"`
	HasSurveyRefs bool `json:"hasSurveyRefs"`

	ChangeTimeStamp     *time.Time `json:"changeTimeStamp"`
	CompletionTimeStamp *time.Time `json:"completionTimeStamp"`
	CreationTimestamp   *time.Time `json:"creationTimestamp"`
	VisitStartTime      *time.Time `json:"visitStartTime"`

	Tasks                entity.TaskList         `json:"tasks"`
	Details              entity.DetailList       `json:"details"`
	ProcessStatusRecords entity.StatusRecordList `json:"processStatusRecords"`
	Defects              entity.DefectList       `json:"defects"`

	Client              datatypes.JSON `json:"client"`
	CarDriver           datatypes.JSON `json:"carDriver"`
	CarOwner            datatypes.JSON `json:"carOwner"`
	SurveyObject        datatypes.JSON `json:"surveyObject"`
	Requester           datatypes.JSON `json:"requester"`
	ResponsibleEmployee datatypes.JSON `json:"responsibleEmployee"`
}

// Upsert 按外部订单号创建或整体覆盖工单。
// 新建时生成公开链接并写入 surveyCompleted 首条审计记录。
func (s *OrderService) Upsert(ctx context.Context, payload *IngestPayload) (*entity.ServiceOrder, bool, error) {
	orderID := payload.ReferenceObject.OrderID()
	if orderID == "" {
		return nil, false, ErrMissingOrderID
	}

	order, err := s.orders.FindByOrderID(ctx, orderID)
	created := false
	if err != nil {
		if err != repository.ErrNotFound {
			return nil, false, err
		}
		order = &entity.ServiceOrder{OrderID: orderID}
		created = true
	}

	applyIngestPayload(order, payload)

	if created {
		publicURL, err := generatePublicURL(s.randToken, func(candidate string) (bool, error) {
			return s.orders.ExistsByPublicURL(ctx, candidate)
		})
		if err != nil {
			return nil, false, err
		}
		order.PublicURL = publicURL

		// 外部系统不补发历史，首次入库即视为调查完成
		order.ProcessStatusRecords = entity.StatusRecordList{{
			ID:        s.newID(),
			Status:    entity.StatusSurveyCompleted,
			Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		}}
		order.ProcessStatus = entity.StatusSurveyCompleted

		if err := s.orders.Create(ctx, order); err != nil {
			return nil, false, fmt.Errorf("create service order: %w", err)
		}
		return order, true, nil
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, false, fmt.Errorf("update service order: %w", err)
	}
	return order, false, nil
}

func applyIngestPayload(order *entity.ServiceOrder, p *IngestPayload) {
	order.ReferenceObject = p.ReferenceObject
	order.Tasks = p.Tasks
	order.Details = p.Details
	order.Defects = p.Defects
	if p.ProcessStatusRecords != nil {
		order.ProcessStatusRecords = p.ProcessStatusRecords
	}
	if p.ProcessStatus != "" {
		order.ProcessStatus = p.ProcessStatus
	}

	order.Client = p.Client
	order.CarDriver = p.CarDriver
	order.CarOwner = p.CarOwner
	order.SurveyObject = p.SurveyObject
	order.Requester = p.Requester
	order.ResponsibleEmployee = p.ResponsibleEmployee

	order.SiteID = p.SiteID
	order.LocationCode = p.LocationCode
	order.ReviewCategory = p.ReviewCategory
	order.DealerCode = p.DealerCode
	order.ReviewID = p.ReviewID
	order.ReviewType = p.ReviewType
	order.SystemID = p.SystemID
	order.ReviewTemplateID = p.ReviewTemplateID
	order.ReviewName = p.ReviewName
	order.TimeSpent = p.TimeSpent

	order.Closed = p.Closed
	order.Completed = p.Completed
	order.HasSurveyRefs = p.HasSurveyRefs

	order.ChangeTimeStamp = p.ChangeTimeStamp
	order.CompletionTimeStamp = p.CompletionTimeStamp
	order.CreationTimestamp = p.CreationTimestamp
	order.VisitStartTime = p.VisitStartTime
}

// GetByPublicURL 公开页面入口
func (s *OrderService) GetByPublicURL(ctx context.Context, publicURL string) (*entity.ServiceOrder, error) {
	return s.orders.FindByPublicURL(ctx, publicURL)
}

// Get 按内部ID查找
func (s *OrderService) Get(ctx context.Context, id uint) (*entity.ServiceOrder, error) {
	return s.orders.FindByID(ctx, id)
}

// List 后台工单列表
func (s *OrderService) List(ctx context.Context, page, pageSize int, search string) ([]entity.ServiceOrder, int64, error) {
	return s.orders.List(ctx, page, pageSize, search)
}

// Delete 后台手工删除
func (s *OrderService) Delete(ctx context.Context, id uint) error {
	return s.orders.Delete(ctx, id)
}

// RecordStatus 幂等记录流程状态，有新增才落库
func (s *OrderService) RecordStatus(ctx context.Context, order *entity.ServiceOrder, status string) (bool, error) {
	if !order.RecordStatusOnce(s.newID(), status, s.now()) {
		return false, nil
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return false, fmt.Errorf("record status %s: %w", status, err)
	}
	return true, nil
}

// Payload 工单的完整对外表示（后台详情页 / 调试导出）
func (s *OrderService) Payload(order *entity.ServiceOrder) map[string]interface{} {
	referenceObject := order.ReferenceObject
	if referenceObject == nil {
		referenceObject = entity.ReferenceObject{}
	}
	if referenceObject.OrderID() == "" && order.OrderID != "" {
		referenceObject["orderId"] = order.OrderID
	}

	return map[string]interface{}{
		"referenceObject":      referenceObject,
		"siteId":               order.SiteID,
		"locationCode":         order.LocationCode,
		"reviewCategory":       order.ReviewCategory,
		"changeTimeStamp":      order.ChangeTimeStamp,
		"closed":               order.Closed,
		"completed":            order.Completed,
		"completionTimeStamp":  order.CompletionTimeStamp,
		"tasks":                order.Tasks,
		"details":              order.Details,
		"creationTimestamp":    order.CreationTimestamp,
		"client":               order.Client,
		"carDriver":            order.CarDriver,
		"carOwner":             order.CarOwner,
		"surveyObject":         order.SurveyObject,
		"requester":            order.Requester,
		"dealerCode":           order.DealerCode,
		"hasSurveyRefs":        order.HasSurveyRefs,
		"reviewId":             order.ReviewID,
		"visitStartTime":       order.VisitStartTime,
		"processStatus":        order.ProcessStatus,
		"processStatusRecords": order.ProcessStatusRecords,
		"reviewType":           order.ReviewType,
		"responsibleEmployee":  order.ResponsibleEmployee,
		"systemId":             order.SystemID,
		"reviewTemplateId":     order.ReviewTemplateID,
		"reviewName":           order.ReviewName,
		"timeSpent":            order.TimeSpent,
		"defects":              order.Defects,
	}
}

// generatePublicURL 生成不可猜测的公开链接，碰撞就重试
func generatePublicURL(randToken func(int) string, exists func(string) (bool, error)) (string, error) {
	for attempt := 0; attempt < publicURLMaxAttempts; attempt++ {
		candidate := randToken(publicURLLength)
		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("check public url: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate unique public url after %d attempts", publicURLMaxAttempts)
}

// randomToken 加密随机的字母数字串
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = publicURLCharset[int(b)%len(publicURLCharset)]
	}
	return string(buf)
}
